// Package images - Image file decoding, encoding and display.
package images

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG  ImageFormat = "jpeg"
	FormatWebP  ImageFormat = "webp"
	FormatPNG   ImageFormat = "png"
	// FormatOther is any container OpenCV cannot be assumed to read, e.g. HEIF or AVIF.
	FormatOther ImageFormat = "other"
)

// ErrUnsupportedFormat is returned when an output path has no encodable extension.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DetectFormat sniffs the container format from the leading bytes.
func DetectFormat(data []byte) ImageFormat {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP
	}
	return FormatOther
}

// FormatFromPath maps a file extension to an encodable format.
//
// Arguments:
//   - path: The output path.
//
// Returns:
//   - ImageFormat: JPEG, PNG or WebP.
//   - error: ErrUnsupportedFormat for any other extension.
func FormatFromPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", path)
}
