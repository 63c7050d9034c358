package rtdetr

import (
	"github.com/nvr-ai/go-rtdetr/models/model"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Input names of RT-DETR exports that include the postprocessing layer.
const (
	InputImage       = "image"
	InputShape       = "im_shape"
	InputScaleFactor = "scale_factor"
)

// Options is the options for the RT-DETR model.
type Options struct {
	Name    model.Name          `json:"name"    yaml:"name"`
	Family  model.Family        `json:"family"  yaml:"family"`
	Path    string              `json:"path"    yaml:"path"`
	Mode    model.OutputMode    `json:"mode"    yaml:"mode"`
	Target  TargetSize          `json:"target"  yaml:"target"`
	Outputs model.OutputIndices `json:"outputs" yaml:"outputs"`
}

// RTDETR is the instance of the RT-DETR model.
//
// It knows how to arrange preprocessed tensors into the model's named inputs and how
// to read the model's indexed outputs back into a RawOutput for the decoder.
type RTDETR struct {
	options Options
}

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model. A zero width or height selects
//     DefaultTargetSize.
//
// Returns:
//   - *RTDETR: The model.
//   - error: ErrInvalidConfig for a foreign model name, a missing path, a negative size or
//     a negative output index.
func NewModel(args model.NewModelArgs) (*RTDETR, error) {
	if args.Name != "" && args.Name != model.ModelNameRTDETR {
		return nil, errors.Wrapf(ErrInvalidConfig, "unsupported model %q", args.Name)
	}
	if args.Path == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "model path is required")
	}

	target := TargetSize{Width: args.Width, Height: args.Height}
	if target.Width == 0 && target.Height == 0 {
		target = DefaultTargetSize
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	if args.Outputs.Detections < 0 || args.Outputs.Boxes < 0 || args.Outputs.Scores < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "output indices must not be negative, got %+v", args.Outputs)
	}

	family := args.Family
	if family == "" {
		family = model.ModelFamilyCOCO
	}

	return &RTDETR{
		options: Options{
			Name:    model.ModelNameRTDETR,
			Family:  family,
			Path:    args.Path,
			Mode:    args.Mode,
			Target:  target,
			Outputs: args.Outputs,
		},
	}, nil
}

// Options returns the options for the RT-DETR model.
//
// Returns:
//   - model.BaseModel: The options.
func (m *RTDETR) Options() model.BaseModel {
	return model.BaseModel{
		Name:    m.options.Name,
		Family:  m.options.Family,
		Path:    m.options.Path,
		Mode:    m.options.Mode,
		Width:   m.options.Target.Width,
		Height:  m.options.Target.Height,
		Outputs: m.options.Outputs,
	}
}

// Target returns the model input size.
func (m *RTDETR) Target() TargetSize {
	return m.options.Target
}

// Mode returns the output layout of the model.
func (m *RTDETR) Mode() model.OutputMode {
	return m.options.Mode
}

// Inputs arranges the image tensor and its scale into the inputs the model declares.
//
// A model with a single input receives the image under that name. A model with several
// inputs receives the image, the im_shape tensor (target height, width) and the
// scale_factor tensor (scaleY, scaleX) under their conventional names.
//
// Arguments:
//   - declared: The input names reported by the runtime, in model order.
//   - img: The [1,3,H,W] image tensor.
//   - scale: The scale metadata of the image.
//
// Returns:
//   - map[string]*tensor.Dense: The named inputs.
//   - error: ErrInvalidInput if the model declares no inputs, an unknown input, or no
//     image input.
func (m *RTDETR) Inputs(declared []string, img *tensor.Dense, scale ScaleMetadata) (map[string]*tensor.Dense, error) {
	switch len(declared) {
	case 0:
		return nil, errors.Wrap(ErrInvalidInput, "model declares no inputs")
	case 1:
		return map[string]*tensor.Dense{declared[0]: img}, nil
	}

	inputs := make(map[string]*tensor.Dense, len(declared))
	for _, name := range declared {
		switch name {
		case InputImage:
			inputs[name] = img
		case InputShape:
			inputs[name] = m.options.Target.ShapeTensor()
		case InputScaleFactor:
			inputs[name] = scale.Tensor()
		default:
			return nil, errors.Wrapf(ErrInvalidInput, "unknown model input %q", name)
		}
	}
	if _, ok := inputs[InputImage]; !ok {
		return nil, errors.Wrapf(ErrInvalidInput, "model inputs %v have no %q input", declared, InputImage)
	}
	return inputs, nil
}

// ParseOutputs selects the output tensors for the model's mode and wraps them for the decoder.
//
// Arguments:
//   - outputs: The model outputs keyed by output index.
//
// Returns:
//   - RawOutput: PreDecoded or RawAnchors.
//   - error: ErrInvalidInput if a required output is missing or malformed.
func (m *RTDETR) ParseOutputs(outputs map[int]*tensor.Dense) (RawOutput, error) {
	idx := m.options.Outputs
	switch m.options.Mode {
	case model.OutputModePreDecoded:
		t, ok := outputs[idx.Detections]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidInput, "missing detections output %d", idx.Detections)
		}
		return NewPreDecoded(t)
	case model.OutputModeRawAnchors:
		scores, ok := outputs[idx.Scores]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidInput, "missing scores output %d", idx.Scores)
		}
		boxes, ok := outputs[idx.Boxes]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidInput, "missing boxes output %d", idx.Boxes)
		}
		return NewRawAnchors(scores, boxes)
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown output mode %v", m.options.Mode)
	}
}
