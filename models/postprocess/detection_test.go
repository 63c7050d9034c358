package postprocess

import (
	"fmt"
	"image"
	"testing"

	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionPoints(t *testing.T) {
	rect := Detection{Box: []float32{10, 20, 30, 40}}
	assert.False(t, rect.IsQuad())
	assert.NoError(t, rect.Validate())
	assert.Equal(t, []image.Point{{10, 20}, {30, 20}, {30, 40}, {10, 40}}, rect.Points())

	quad := Detection{Box: []float32{0, 0, 10, 2, 12, 12, 2, 10}}
	assert.True(t, quad.IsQuad())
	assert.NoError(t, quad.Validate())
	assert.Equal(t, []image.Point{{0, 0}, {10, 2}, {12, 12}, {2, 10}}, quad.Points())
	assert.Equal(t, [4]float32{0, 0, 12, 12}, quad.Bounds())

	bad := Detection{Box: []float32{1, 2, 3}}
	assert.Error(t, bad.Validate())
	assert.Nil(t, bad.Points())
	assert.Equal(t, [4]float32{}, bad.Bounds())
}

func TestDetectionValidateError(t *testing.T) {
	tests := []struct {
		name string
		box  []float32
		want string
	}{
		{name: "empty", box: nil, want: "box must have 4 or 8 values, got 0"},
		{name: "six values", box: make([]float32, 6), want: "box must have 4 or 8 values, got 6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Detection{Box: tt.box}.Validate()
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)
			assert.Equal(t, err, errors.Cause(err))

			wrapped := errors.Wrap(err, "detection 3")
			assert.Equal(t, err, errors.Cause(wrapped))
			assert.Contains(t, fmt.Sprintf("%+v", err), "TestDetectionValidateError", "stack trace recorded")
		})
	}
}

func TestDetectionLabel(t *testing.T) {
	d := Detection{ClassID: 2, Label: labels.Named(2, "car"), Score: 0.9, Box: []float32{0, 0, 1, 1}}
	assert.Equal(t, "car", d.Label.String())
}
