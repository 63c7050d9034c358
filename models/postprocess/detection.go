// Package postprocess - Detection results produced by model decoders.
package postprocess

import (
	"image"

	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/pkg/errors"
)

const (
	// RectLen is the number of values in an axis-aligned box (xmin, ymin, xmax, ymax).
	RectLen = 4
	// QuadLen is the number of values in a quadrilateral box (four x, y corner points).
	QuadLen = 8
)

// Detection represents a single decoded detection in original-image pixel space.
type Detection struct {
	// The predicted class index.
	ClassID int `json:"class_id"`
	// The resolved label of the class.
	Label labels.Label `json:"label"`
	// The confidence score in [0, 1].
	Score float32 `json:"score"`
	// The box as 4 values (xmin, ymin, xmax, ymax) or 8 values (x0, y0, ..., x3, y3).
	Box []float32 `json:"box"`
}

// IsQuad reports whether the box holds four corner points rather than two.
func (d Detection) IsQuad() bool {
	return len(d.Box) == QuadLen
}

// Validate checks that the box has a supported number of values.
//
// Returns:
//   - error: An error if the box is neither 4 nor 8 values long.
func (d Detection) Validate() error {
	if len(d.Box) != RectLen && len(d.Box) != QuadLen {
		return errors.Errorf("box must have %d or %d values, got %d", RectLen, QuadLen, len(d.Box))
	}
	return nil
}

// Points returns the box corners in drawing order.
//
// A 4-value box yields its four rectangle corners clockwise from the top-left;
// an 8-value box yields its corners as stored.
//
// Returns:
//   - []image.Point: The corners, or nil if the box is malformed.
func (d Detection) Points() []image.Point {
	switch len(d.Box) {
	case RectLen:
		x1, y1 := int(d.Box[0]), int(d.Box[1])
		x2, y2 := int(d.Box[2]), int(d.Box[3])
		return []image.Point{{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2}}
	case QuadLen:
		pts := make([]image.Point, 0, 4)
		for i := 0; i < QuadLen; i += 2 {
			pts = append(pts, image.Point{X: int(d.Box[i]), Y: int(d.Box[i+1])})
		}
		return pts
	default:
		return nil
	}
}

// Bounds returns the axis-aligned extent of the box as (xmin, ymin, xmax, ymax).
//
// Returns:
//   - [4]float32: The extent. Zero for a malformed box.
func (d Detection) Bounds() [4]float32 {
	if len(d.Box) != RectLen && len(d.Box) != QuadLen {
		return [4]float32{}
	}
	b := [4]float32{d.Box[0], d.Box[1], d.Box[0], d.Box[1]}
	for i := 2; i < len(d.Box); i += 2 {
		x, y := d.Box[i], d.Box[i+1]
		b[0] = min(b[0], x)
		b[1] = min(b[1], y)
		b[2] = max(b[2], x)
		b[3] = max(b[3], y)
	}
	return b
}
