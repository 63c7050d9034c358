package rtdetr

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TargetSize is the fixed resolution the model runs at.
type TargetSize struct {
	Width  int `json:"width"  yaml:"width"  mapstructure:"width"`
	Height int `json:"height" yaml:"height" mapstructure:"height"`
}

// DefaultTargetSize is the 640x640 input of the published RT-DETR exports.
var DefaultTargetSize = TargetSize{Width: 640, Height: 640}

// Validate checks that both dimensions are positive.
//
// Returns:
//   - error: ErrInvalidConfig if either dimension is not positive.
func (t TargetSize) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "target size must be positive, got %dx%d", t.Width, t.Height)
	}
	return nil
}

// ShapeTensor returns the [1,2] im_shape input (height, width) fed to models that
// include their own postprocessing layer.
func (t TargetSize) ShapeTensor() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1, 2),
		tensor.WithBacking([]float32{float32(t.Height), float32(t.Width)}),
	)
}

// Shape is an image extent in pixels.
type Shape struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// ScaleFactor is the per-axis ratio of target size to original size.
type ScaleFactor struct {
	Y float32 `json:"y"`
	X float32 `json:"x"`
}

// ScaleMetadata records how an image was resized so decoded boxes can be mapped back
// to original-image pixels. It is produced once per image by Preprocess and passed
// explicitly to Decode.
type ScaleMetadata struct {
	OriginalShape Shape       `json:"original_shape"`
	ScaleFactor   ScaleFactor `json:"scale_factor"`
}

// NewScaleMetadata computes the scale from an original extent to a target size.
//
// Arguments:
//   - original: The original image extent.
//   - target: The model input size.
//
// Returns:
//   - ScaleMetadata: The metadata with ScaleFactor = target / original per axis.
//   - error: ErrInvalidInput if the original extent is empty.
func NewScaleMetadata(original Shape, target TargetSize) (ScaleMetadata, error) {
	if original.Width <= 0 || original.Height <= 0 {
		return ScaleMetadata{}, errors.Wrapf(ErrInvalidInput, "image must be non-empty, got %dx%d", original.Width, original.Height)
	}
	return ScaleMetadata{
		OriginalShape: original,
		ScaleFactor: ScaleFactor{
			Y: float32(target.Height) / float32(original.Height),
			X: float32(target.Width) / float32(original.Width),
		},
	}, nil
}

// Tensor returns the [1,2] scale_factor input (scaleY, scaleX).
func (s ScaleMetadata) Tensor() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1, 2),
		tensor.WithBacking([]float32{s.ScaleFactor.Y, s.ScaleFactor.X}),
	)
}
