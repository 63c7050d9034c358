package images

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	return img
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want ImageFormat
	}{
		{name: "jpeg", data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, want: FormatJPEG},
		{name: "png", data: []byte("\x89PNG\r\n\x1a\n\x00\x00"), want: FormatPNG},
		{name: "webp", data: []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), want: FormatWebP},
		{name: "riff not webp", data: []byte("RIFF\x24\x00\x00\x00WAVEfmt "), want: FormatOther},
		{name: "heif", data: []byte("\x00\x00\x00\x18ftypheic"), want: FormatOther},
		{name: "short", data: []byte{0xFF}, want: FormatOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data))
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]ImageFormat{
		"result.jpg":      FormatJPEG,
		"out/RESULT.JPEG": FormatJPEG,
		"a.png":           FormatPNG,
		"a.webp":          FormatWebP,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("result.bmp")
	assert.Equal(t, ErrUnsupportedFormat, errors.Cause(err))
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(nil)
	assert.Equal(t, ErrEmptyImage, err)
}

func TestWebPRoundTrip(t *testing.T) {
	data, err := Encode(getTestImage(), FormatWebP)
	require.NoError(t, err)
	assert.Equal(t, FormatWebP, DetectFormat(data))

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
}

func TestSaveLoadWebP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.webp")
	require.NoError(t, Save(path, getTestImage()))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	_, err = Load(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}
