package images

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/chai2010/webp"
	"github.com/cshum/vipsgen/vips"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned for empty input data or an image that decodes to nothing.
var ErrEmptyImage = errors.New("empty image")

// JPEGQuality is the quality used when encoding JPEG and lossy WebP output.
const JPEGQuality = 95

// Load reads and decodes an image file.
//
// Arguments:
//   - path: The image path.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be read or decoded.
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read image %s", path)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}
	return img, nil
}

// Decode decodes an encoded image. JPEG and PNG go through OpenCV, WebP through libwebp,
// and any other container is transcoded by libvips first.
//
// Arguments:
//   - data: The encoded bytes.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: ErrEmptyImage for empty data, or the decoder error.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	switch DetectFormat(data) {
	case FormatWebP:
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode WebP: %w", err)
		}
		return img, nil
	case FormatJPEG, FormatPNG:
		return decodeMat(data)
	default:
		return decodeWithVips(data)
	}
}

func decodeMat(data []byte) (image.Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, ErrEmptyImage
	}
	return mat.ToImage()
}

// decodeWithVips loads a container OpenCV may not read and re-encodes it as PNG.
func decodeWithVips(data []byte) (image.Image, error) {
	img, err := vips.NewImageFromBuffer(data, &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	png, err := img.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	if err != nil || len(png) == 0 {
		return nil, fmt.Errorf("failed to transcode image")
	}
	return decodeMat(png)
}

// Encode encodes an image in the given format.
//
// Arguments:
//   - img: The image.
//   - format: JPEG, PNG or WebP.
//
// Returns:
//   - []byte: The encoded bytes.
//   - error: ErrUnsupportedFormat or the encoder error.
func Encode(img image.Image, format ImageFormat) ([]byte, error) {
	switch format {
	case FormatWebP:
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, &webp.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode WebP: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJPEG:
		return encodeMat(img, gocv.JPEGFileExt, gocv.IMWriteJpegQuality, JPEGQuality)
	case FormatPNG:
		return encodeMat(img, gocv.PNGFileExt)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
}

func encodeMat(img image.Image, ext gocv.FileExt, params ...int) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(ext, mat, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Save encodes an image in the format named by the path extension and writes it.
//
// Arguments:
//   - path: The output path ending in .jpg, .jpeg, .png or .webp.
//   - img: The image.
//
// Returns:
//   - error: An error if the format is unsupported or the write fails.
func Save(path string, img image.Image) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(img, format)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write image %s", path)
}
