package imageinfo

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func encode(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff":
		err = tiff.Encode(&buf, img, nil)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	for _, format := range []string{"png", "jpeg", "gif", "bmp", "tiff"} {
		t.Run(format, func(t *testing.T) {
			info, err := Decode(encode(t, format, 12, 7))
			require.NoError(t, err)
			assert.Equal(t, Info{Width: 12, Height: 7, Format: format}, info)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte("<html>not found</html>"))
	assert.Error(t, err)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	require.NoError(t, os.WriteFile(path, encode(t, "png", 3, 9), 0644))

	info, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Width)
	assert.Equal(t, 9, info.Height)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
