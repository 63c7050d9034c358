package rtdetr

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// RowSize is the number of values in a pre-decoded detection row.
	RowSize = 6
	// BoxSize is the number of values in a raw box regression.
	BoxSize = 4
)

// RawOutput is the model output handed to the decoder. It is either PreDecoded or RawAnchors.
type RawOutput interface {
	isRawOutput()
}

// BoxRow is one pre-decoded detection: [classId, score, x1, y1, x2, y2] in original-image pixels.
type BoxRow [RowSize]float32

// PreDecoded is the output of a model that includes its own postprocessing layer.
type PreDecoded struct {
	Rows []BoxRow
}

func (PreDecoded) isRawOutput() {}

// Anchor is one candidate detection slot: class logits and a normalized [cx, cy, w, h] box.
type Anchor struct {
	Scores []float32
	Box    [BoxSize]float32
}

// RawAnchors is the output of a model without a postprocessing layer.
type RawAnchors struct {
	Anchors []Anchor
}

func (RawAnchors) isRawOutput() {}

// NewPreDecoded reads [N,6] detection rows from a tensor. A leading batch dimension
// of 1 is accepted.
//
// Arguments:
//   - t: The float32 detections tensor.
//
// Returns:
//   - PreDecoded: The rows, copied out of the tensor.
//   - error: ErrInvalidInput if the tensor has the wrong type or shape.
func NewPreDecoded(t *tensor.Dense) (PreDecoded, error) {
	data, shape, err := matrix(t, "detections")
	if err != nil {
		return PreDecoded{}, err
	}
	if shape[1] != RowSize {
		return PreDecoded{}, errors.Wrapf(ErrInvalidInput, "detections must have %d columns, got shape %v", RowSize, t.Shape())
	}

	rows := make([]BoxRow, shape[0])
	for i := range rows {
		copy(rows[i][:], data[i*RowSize:(i+1)*RowSize])
	}
	return PreDecoded{Rows: rows}, nil
}

// NewRawAnchors pairs an [N,C] scores tensor with an [N,4] boxes tensor. A leading
// batch dimension of 1 is accepted on either.
//
// Arguments:
//   - scores: The float32 class logits tensor.
//   - boxes: The float32 box regressions tensor.
//
// Returns:
//   - RawAnchors: The anchors, copied out of the tensors.
//   - error: ErrInvalidInput if either tensor has the wrong type or shape, or the
//     anchor counts differ.
func NewRawAnchors(scores, boxes *tensor.Dense) (RawAnchors, error) {
	scoreData, scoreShape, err := matrix(scores, "scores")
	if err != nil {
		return RawAnchors{}, err
	}
	boxData, boxShape, err := matrix(boxes, "boxes")
	if err != nil {
		return RawAnchors{}, err
	}
	if boxShape[1] != BoxSize {
		return RawAnchors{}, errors.Wrapf(ErrInvalidInput, "boxes must have %d columns, got shape %v", BoxSize, boxes.Shape())
	}
	if scoreShape[0] != boxShape[0] {
		return RawAnchors{}, errors.Wrapf(ErrInvalidInput, "anchor count mismatch: %d scores, %d boxes", scoreShape[0], boxShape[0])
	}

	n, classes := scoreShape[0], scoreShape[1]
	scoreData = append([]float32(nil), scoreData...)
	anchors := make([]Anchor, n)
	for i := range anchors {
		anchors[i].Scores = scoreData[i*classes : (i+1)*classes : (i+1)*classes]
		copy(anchors[i].Box[:], boxData[i*BoxSize:(i+1)*BoxSize])
	}
	return RawAnchors{Anchors: anchors}, nil
}

// matrix returns the float32 backing and the [rows, cols] shape of a 2-D tensor,
// or of a 3-D tensor whose leading dimension is 1.
func matrix(t *tensor.Dense, name string) ([]float32, [2]int, error) {
	if t == nil {
		return nil, [2]int{}, errors.Wrapf(ErrInvalidInput, "%s tensor is nil", name)
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, [2]int{}, errors.Wrapf(ErrInvalidInput, "%s tensor must be float32, got %v", name, t.Dtype())
	}

	shape := t.Shape()
	switch {
	case len(shape) == 2:
		return data, [2]int{shape[0], shape[1]}, nil
	case len(shape) == 3 && shape[0] == 1:
		return data, [2]int{shape[1], shape[2]}, nil
	default:
		return nil, [2]int{}, errors.Wrapf(ErrInvalidInput, "%s tensor must be [N,C] or [1,N,C], got %v", name, shape)
	}
}
