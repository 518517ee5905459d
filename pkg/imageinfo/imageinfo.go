// Package imageinfo reads image dimensions from encoded bytes without
// decoding pixel data.
package imageinfo

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for image.DecodeConfig
	_ "image/jpeg" // register JPEG decoder for image.DecodeConfig
	_ "image/png"  // register PNG decoder for image.DecodeConfig
	"os"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Info describes an encoded image
type Info struct {
	Width  int
	Height int
	Format string
}

// Decode returns the dimensions and format of data
func Decode(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("empty image data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// DecodeFile returns the dimensions and format of the image at path
func DecodeFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
