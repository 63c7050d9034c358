package rtdetr

import (
	"testing"

	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitScale = ScaleMetadata{
	OriginalShape: Shape{Height: 640, Width: 640},
	ScaleFactor:   ScaleFactor{Y: 1, X: 1},
}

func newTestDecoder(t *testing.T, opts ...DecoderOption) *Decoder {
	t.Helper()
	d, err := NewDecoder(DefaultDecoderConfig(), opts...)
	require.NoError(t, err)
	return d
}

func TestNewDecoderValidation(t *testing.T) {
	for _, threshold := range []float32{-0.1, 1.5} {
		_, err := NewDecoder(DecoderConfig{Threshold: threshold, Target: DefaultTargetSize})
		assert.True(t, errors.Is(err, ErrInvalidConfig), "threshold %v", threshold)
	}

	_, err := NewDecoder(DecoderConfig{Threshold: 0.5, Target: TargetSize{Width: 0, Height: 640}})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	d, err := NewDecoder(DecoderConfig{Threshold: 1, Target: DefaultTargetSize})
	require.NoError(t, err)
	assert.Equal(t, float32(1), d.Config().Threshold)
}

// TestDecodePreDecoded validates thresholding of rows that already carry pixel boxes.
func TestDecodePreDecoded(t *testing.T) {
	d := newTestDecoder(t)

	out := PreDecoded{Rows: []BoxRow{
		{0, 0.9, 10, 10, 50, 50},
		{1, 0.3, 5, 5, 8, 8},
	}}
	dets, err := d.Decode(out, ScaleMetadata{})
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.Equal(t, 0, dets[0].ClassID)
	assert.Equal(t, float32(0.9), dets[0].Score)
	assert.Equal(t, []float32{10, 10, 50, 50}, dets[0].Box)
	assert.False(t, dets[0].Label.IsNamed())
	assert.Equal(t, 0, dets[0].Label.ID())
}

func TestDecodePreDecodedKeepsOrderAndBoundary(t *testing.T) {
	d := newTestDecoder(t, WithResolver(labels.NewResolver(labels.Table{"cat", "dog", "bird"})))

	out := &PreDecoded{Rows: []BoxRow{
		{2, 0.7, 1, 2, 3, 4},
		{0, 0.5, 5, 6, 7, 8},
		{1, 0.49, 0, 0, 1, 1},
		{1, 0.95, 9, 9, 10, 10},
	}}
	dets, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	require.Len(t, dets, 3)

	assert.Equal(t, "bird", dets[0].Label.String())
	assert.Equal(t, "cat", dets[1].Label.String(), "a score equal to the threshold is kept")
	assert.Equal(t, "dog", dets[2].Label.String())
	assert.Equal(t, []float32{9, 9, 10, 10}, dets[2].Box)
}

// TestDecodeRawAnchors validates sigmoid, argmax and box inversion for a single anchor.
func TestDecodeRawAnchors(t *testing.T) {
	d := newTestDecoder(t)

	out := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{0.1, 5.0}, Box: [4]float32{0.5, 0.5, 0.2, 0.2}},
	}}
	dets, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.Equal(t, 1, dets[0].ClassID)
	assert.InDelta(t, 0.993, dets[0].Score, 1e-3)
	require.Len(t, dets[0].Box, 4)
	expected := []float32{256, 256, 384, 384}
	for i := range expected {
		assert.InDelta(t, expected[i], dets[0].Box[i], 1e-3)
	}
}

func TestDecodeRawAnchorsScalesToOriginal(t *testing.T) {
	d := newTestDecoder(t)

	// A 1280x320 image resized to 640x640.
	scale, err := NewScaleMetadata(Shape{Height: 320, Width: 1280}, DefaultTargetSize)
	require.NoError(t, err)

	out := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{4, -4}, Box: [4]float32{0.5, 0.5, 0.25, 0.5}},
	}}
	dets, err := d.Decode(out, scale)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.Equal(t, 0, dets[0].ClassID)
	expected := []float32{480, 80, 800, 240}
	for i := range expected {
		assert.InDelta(t, expected[i], dets[0].Box[i], 1e-3)
	}
}

func TestDecodeRawAnchorsThreshold(t *testing.T) {
	d := newTestDecoder(t)

	out := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{-2, -3}, Box: [4]float32{0.5, 0.5, 0.1, 0.1}},
		{Scores: []float32{0.01, -1}, Box: [4]float32{0.5, 0.5, 0.1, 0.1}},
	}}
	dets, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 0, dets[0].ClassID)
}

func TestDecodeRawAnchorsTiesPickFirstClass(t *testing.T) {
	d := newTestDecoder(t)

	out := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{1, 3, 3, 2}, Box: [4]float32{0.5, 0.5, 0.1, 0.1}},
	}}
	dets, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 1, dets[0].ClassID)
}

// TestDecodeRawAnchorsNoSuppression validates that overlapping detections above the
// threshold are all emitted.
func TestDecodeRawAnchorsNoSuppression(t *testing.T) {
	d := newTestDecoder(t)

	out := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{3, 0}, Box: [4]float32{0.5, 0.5, 0.2, 0.2}},
		{Scores: []float32{2.5, 0}, Box: [4]float32{0.51, 0.5, 0.2, 0.2}},
	}}
	dets, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, 0, dets[0].ClassID)
	assert.Equal(t, 0, dets[1].ClassID)
	assert.Less(t, dets[1].Box[0], dets[0].Box[2], "boxes overlap")
	assert.Greater(t, dets[1].Box[0], dets[0].Box[0])
}

func TestDecodeRawAnchorsSkipsEmptyScores(t *testing.T) {
	d := newTestDecoder(t)

	out := RawAnchors{Anchors: []Anchor{
		{Scores: nil, Box: [4]float32{0.5, 0.5, 0.2, 0.2}},
		{Scores: []float32{}, Box: [4]float32{0.5, 0.5, 0.2, 0.2}},
		{Scores: []float32{5}, Box: [4]float32{0.5, 0.5, 0.2, 0.2}},
	}}
	dets, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	require.Len(t, dets, 1)
}

// TestDecodeIdempotent validates that repeated decoding yields identical results.
func TestDecodeIdempotent(t *testing.T) {
	d := newTestDecoder(t, WithResolver(labels.NewResolver(labels.Table{"a", "b", "c"})))

	out := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{0.1, 5.0, -1}, Box: [4]float32{0.5, 0.5, 0.2, 0.2}},
		{Scores: []float32{3, 1, 2}, Box: [4]float32{0.1, 0.2, 0.05, 0.1}},
	}}
	first, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	second, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []float32{0.1, 5.0, -1}, out.Anchors[0].Scores, "logits are not modified")
}

func TestDecodeOutOfRangeLabelFailsWholeCall(t *testing.T) {
	d := newTestDecoder(t, WithResolver(labels.NewResolver(labels.Table{"cat", "dog"})))

	rows := PreDecoded{Rows: []BoxRow{
		{0, 0.9, 0, 0, 1, 1},
		{2, 0.9, 0, 0, 1, 1},
	}}
	dets, err := d.Decode(rows, unitScale)
	assert.Nil(t, dets)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))

	anchors := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{5, 0}, Box: [4]float32{0.5, 0.5, 0.1, 0.1}},
		{Scores: []float32{0, 0, 5}, Box: [4]float32{0.5, 0.5, 0.1, 0.1}},
	}}
	dets, err = d.Decode(anchors, unitScale)
	assert.Nil(t, dets)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestDecodeInvalidInput(t *testing.T) {
	d := newTestDecoder(t)

	_, err := d.Decode(nil, unitScale)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var rows *PreDecoded
	_, err = d.Decode(rows, unitScale)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	anchors := RawAnchors{Anchors: []Anchor{{Scores: []float32{5}}}}
	_, err = d.Decode(anchors, ScaleMetadata{})
	assert.True(t, errors.Is(err, ErrInvalidInput), "zero scale factors cannot be inverted")
}

type failingActivation struct{}

func (failingActivation) Apply([]float32) ([]float32, error) {
	return nil, errors.New("boom")
}

func TestDecodeActivationFailure(t *testing.T) {
	d := newTestDecoder(t, WithActivation(failingActivation{}))

	_, err := d.Decode(RawAnchors{Anchors: []Anchor{{Scores: []float32{1}}}}, unitScale)
	assert.EqualError(t, errors.Cause(err), "boom")
}

func TestDecodeWithGraphActivation(t *testing.T) {
	graph := NewGraphActivation()
	defer graph.Close()
	d := newTestDecoder(t, WithActivation(graph))

	out := RawAnchors{Anchors: []Anchor{
		{Scores: []float32{0.1, 5.0}, Box: [4]float32{0.5, 0.5, 0.2, 0.2}},
	}}
	dets, err := d.Decode(out, unitScale)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 1, dets[0].ClassID)
	assert.InDelta(t, 0.993, dets[0].Score, 1e-3)
}
