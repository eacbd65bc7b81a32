package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// GrayscaleCommand drops color information. Slips are printed or rendered
// text; grayscale input tends to OCR better than camera color casts.
type GrayscaleCommand struct {
	name string
}

// NewGrayscaleCommand creates a new grayscale command
func NewGrayscaleCommand(params map[string]any) (Command, error) {
	return &GrayscaleCommand{name: "grayscale"}, nil
}

// Name returns the command name
func (c *GrayscaleCommand) Name() string {
	return c.name
}

func (c *GrayscaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := imaging.Grayscale(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	if err := DefaultRegistry.Register("grayscale", NewGrayscaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register grayscale: %v", err))
	}
}
