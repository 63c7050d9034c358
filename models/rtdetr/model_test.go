package rtdetr

import (
	"testing"

	"github.com/nvr-ai/go-rtdetr/models/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNewModel(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{Path: "rtdetr.onnx", Outputs: model.DefaultOutputIndices()})
	require.NoError(t, err)

	opts := m.Options()
	assert.Equal(t, model.ModelNameRTDETR, opts.Name)
	assert.Equal(t, model.ModelFamilyCOCO, opts.Family)
	assert.Equal(t, 640, opts.Width)
	assert.Equal(t, 640, opts.Height)
	assert.Equal(t, DefaultTargetSize, m.Target())
	assert.Equal(t, model.OutputModePreDecoded, m.Mode())
}

func TestNewModelValidation(t *testing.T) {
	cases := []model.NewModelArgs{
		{Name: "yolov4", Path: "m.onnx"},
		{},
		{Path: "m.onnx", Width: -1, Height: 640},
		{Path: "m.onnx", Outputs: model.OutputIndices{Scores: -1}},
	}
	for i, args := range cases {
		_, err := NewModel(args)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "case %d", i)
	}
}

func TestModelInputs(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{Path: "m.onnx"})
	require.NoError(t, err)

	img := tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking(make([]float32, 12)))
	scale := ScaleMetadata{ScaleFactor: ScaleFactor{Y: 0.5, X: 2}}

	inputs, err := m.Inputs([]string{"images"}, img, scale)
	require.NoError(t, err)
	assert.Len(t, inputs, 1)
	assert.Same(t, img, inputs["images"])

	inputs, err = m.Inputs([]string{InputShape, InputImage, InputScaleFactor}, img, scale)
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Same(t, img, inputs[InputImage])
	assert.Equal(t, []float32{640, 640}, inputs[InputShape].Data().([]float32))
	assert.Equal(t, []float32{0.5, 2}, inputs[InputScaleFactor].Data().([]float32))

	_, err = m.Inputs(nil, img, scale)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = m.Inputs([]string{InputImage, "mask"}, img, scale)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = m.Inputs([]string{InputShape, InputScaleFactor}, img, scale)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestModelParseOutputs(t *testing.T) {
	pre, err := NewModel(model.NewModelArgs{Path: "m.onnx", Mode: model.OutputModePreDecoded, Outputs: model.DefaultOutputIndices()})
	require.NoError(t, err)

	rows := tensor.New(tensor.WithShape(1, 1, 6), tensor.WithBacking([]float32{0, 0.9, 1, 2, 3, 4}))
	out, err := pre.ParseOutputs(map[int]*tensor.Dense{0: rows})
	require.NoError(t, err)
	require.IsType(t, PreDecoded{}, out)
	assert.Len(t, out.(PreDecoded).Rows, 1)

	_, err = pre.ParseOutputs(map[int]*tensor.Dense{})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	raw, err := NewModel(model.NewModelArgs{Path: "m.onnx", Mode: model.OutputModeRawAnchors, Outputs: model.DefaultOutputIndices()})
	require.NoError(t, err)

	boxes := tensor.New(tensor.WithShape(1, 2, 4), tensor.WithBacking(make([]float32, 8)))
	scores := tensor.New(tensor.WithShape(1, 2, 80), tensor.WithBacking(make([]float32, 160)))
	out, err = raw.ParseOutputs(map[int]*tensor.Dense{0: boxes, 1: scores})
	require.NoError(t, err)
	require.IsType(t, RawAnchors{}, out)
	anchors := out.(RawAnchors).Anchors
	require.Len(t, anchors, 2)
	assert.Len(t, anchors[0].Scores, 80)

	_, err = raw.ParseOutputs(map[int]*tensor.Dense{0: boxes})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
