package rtdetr

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ChannelOrder defines the color channel order written into the input tensor.
type ChannelOrder int

const (
	// ChannelOrderRGB writes red, green, blue planes.
	ChannelOrderRGB ChannelOrder = iota
	// ChannelOrderBGR writes blue, green, red planes (OpenCV native order).
	ChannelOrderBGR
)

// ParseChannelOrder maps "rgb" or "bgr" to a ChannelOrder.
//
// Arguments:
//   - s: The order name.
//
// Returns:
//   - ChannelOrder: The parsed order.
//   - error: ErrInvalidConfig for any other value.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch s {
	case "", "rgb", "RGB":
		return ChannelOrderRGB, nil
	case "bgr", "BGR":
		return ChannelOrderBGR, nil
	default:
		return ChannelOrderRGB, errors.Wrapf(ErrInvalidConfig, "unknown channel order %q", s)
	}
}

// Preprocessor turns decoded images into normalized model input tensors.
//
// A Preprocessor holds no per-image state; the scale of each image is returned from
// Preprocess rather than cached, so one instance may serve any number of images.
type Preprocessor struct {
	target TargetSize
	order  ChannelOrder
	interp resize.InterpolationFunction
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithChannelOrder sets the channel order of the output tensor.
func WithChannelOrder(order ChannelOrder) PreprocessorOption {
	return func(p *Preprocessor) {
		p.order = order
	}
}

// NewPreprocessor creates a new preprocessor for a fixed target size.
//
// Arguments:
//   - target: The model input size. Both dimensions must be positive.
//   - opts: Optional settings.
//
// Returns:
//   - *Preprocessor: The preprocessor.
//   - error: ErrInvalidConfig if the target size is not positive.
//
// @example
//
//	p, err := rtdetr.NewPreprocessor(rtdetr.DefaultTargetSize)
//	if err != nil {
//		return err
//	}
//	input, scale, err := p.Preprocess(img)
func NewPreprocessor(target TargetSize, opts ...PreprocessorOption) (*Preprocessor, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	p := &Preprocessor{
		target: target,
		order:  ChannelOrderRGB,
		interp: resize.Bilinear,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Target returns the configured model input size.
func (p *Preprocessor) Target() TargetSize {
	return p.target
}

// Preprocess resizes an image to the target size with bilinear interpolation, scales
// every channel into [0, 1], and lays it out as a [1, 3, H, W] tensor.
//
// Arguments:
//   - img: The decoded image.
//
// Returns:
//   - *tensor.Dense: The float32 input tensor.
//   - ScaleMetadata: The original extent and per-axis scale factors of img.
//   - error: ErrInvalidInput if img is nil or empty.
func (p *Preprocessor) Preprocess(img image.Image) (*tensor.Dense, ScaleMetadata, error) {
	if img == nil {
		return nil, ScaleMetadata{}, errors.Wrap(ErrInvalidInput, "image is nil")
	}
	bounds := img.Bounds()
	scale, err := NewScaleMetadata(Shape{Height: bounds.Dy(), Width: bounds.Dx()}, p.target)
	if err != nil {
		return nil, ScaleMetadata{}, err
	}

	resized := resize.Resize(uint(p.target.Width), uint(p.target.Height), img, p.interp)
	data := p.toCHW(resized)

	return tensor.New(
		tensor.WithShape(1, 3, p.target.Height, p.target.Width),
		tensor.WithBacking(data),
	), scale, nil
}

// toCHW writes the image into planar channel-first layout divided by 255.
func (p *Preprocessor) toCHW(img image.Image) []float32 {
	width, height := p.target.Width, p.target.Height
	plane := width * height
	data := make([]float32, 3*plane)

	r, b := 0, 2
	if p.order == ChannelOrderBGR {
		r, b = 2, 0
	}

	origin := img.Bounds().Min
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				px := rgba.Pix[rgba.PixOffset(origin.X+x, origin.Y+y):]
				i := y*width + x
				data[r*plane+i] = float32(px[0]) / 255.0
				data[plane+i] = float32(px[1]) / 255.0
				data[b*plane+i] = float32(px[2]) / 255.0
			}
		}
		return data
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			cr, cg, cb, _ := img.At(origin.X+x, origin.Y+y).RGBA()
			i := y*width + x
			data[r*plane+i] = float32(cr>>8) / 255.0
			data[plane+i] = float32(cg>>8) / 255.0
			data[b*plane+i] = float32(cb>>8) / 255.0
		}
	}
	return data
}
