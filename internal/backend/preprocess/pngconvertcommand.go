package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/rs/zerolog/log"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// HasPNGSignature checks whether the provided data begins with a valid PNG signature
func HasPNGSignature(data []byte) bool {
	// PNG signature: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) < 8 {
		return false
	}
	expected := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	return bytes.Equal(data[:8], expected)
}

// PngConvertCommand converts any supported raster format to PNG so Tesseract
// always receives a format it can read. PNG input passes through untouched.
type PngConvertCommand struct {
	name string
}

// NewPngConvertCommand creates a new PNG converter command
func NewPngConvertCommand(params map[string]any) (Command, error) {
	return &PngConvertCommand{name: "pngconvert"}, nil
}

// Name returns the command name
func (c *PngConvertCommand) Name() string {
	return c.name
}

func (c *PngConvertCommand) Execute(imageData []byte) ([]byte, error) {
	if HasPNGSignature(imageData) {
		return imageData, nil
	}

	// Decode raster image (supports multiple formats via imported decoders)
	img, currentFormat, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	log.Debug().
		Str("current_format", currentFormat).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("pngconvert: decoded raster image")

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	if err := DefaultRegistry.Register("pngconvert", NewPngConvertCommand); err != nil {
		panic(fmt.Sprintf("failed to register pngconvert: %v", err))
	}
}
