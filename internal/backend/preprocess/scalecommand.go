package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ScaleCommand resizes the image to a target width, preserving aspect ratio.
// Width 0 leaves the image untouched. Images narrower than the target are
// not upscaled; blowing up a blurry slip photo does not help Tesseract.
type ScaleCommand struct {
	name  string
	width int
}

// NewScaleCommand creates a new scale command
func NewScaleCommand(params map[string]any) (Command, error) {
	width := GetIntParam(params, "width", 0)
	if width < 0 {
		return nil, fmt.Errorf("width must not be negative, got %d", width)
	}

	return &ScaleCommand{
		name:  "scale",
		width: width,
	}, nil
}

// Name returns the command name
func (c *ScaleCommand) Name() string {
	return c.name
}

func (c *ScaleCommand) Execute(imageData []byte) ([]byte, error) {
	if c.width == 0 {
		return imageData, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Bounds().Dx() > c.width {
		img = imaging.Resize(img, c.width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	if err := DefaultRegistry.Register("scale", NewScaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register scale: %v", err))
	}
}
