// Package ocr extracts text from stored slip images using Tesseract via
// gosseract. Tesseract and the language data for the configured language
// (tesseract-ocr-tha for Thai slips) must be installed on the system.
package ocr

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract performs OCR on image files. A fresh gosseract client is used
// per call; the client is not safe for concurrent reuse.
type Tesseract struct{}

func New() *Tesseract {
	return &Tesseract{}
}

// ExtractText performs OCR on an image file and returns the recognized text.
// language is a Tesseract language code such as "tha" or "eng".
func (t *Tesseract) ExtractText(imagePath, language string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}

	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	return text, nil
}
