// Package model - Definitions for model identity and output conventions.
package model

import "fmt"

// Family is the family of models.
type Family string

const (
	// ModelFamilyCOCO is the COCO model family.
	ModelFamilyCOCO Family = "coco"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameRTDETR is the name of the RT-DETR model.
	ModelNameRTDETR Name = "rtdetr"
)

// OutputMode identifies which output layout a compiled model exposes.
type OutputMode int

const (
	// OutputModePreDecoded is a model with its own postprocessing layer that emits
	// [classId, score, x1, y1, x2, y2] rows in original-image pixel space.
	OutputModePreDecoded OutputMode = iota
	// OutputModeRawAnchors is a model without postprocessing that emits per-anchor class
	// logits and normalized [cx, cy, w, h] box regressions.
	OutputModeRawAnchors
)

// OutputModeFromFlag maps the command line post-process flag to an output mode.
//
// Arguments:
//   - postProcess: True if the model includes its postprocessing layer.
//
// Returns:
//   - OutputMode: The corresponding output mode.
func OutputModeFromFlag(postProcess bool) OutputMode {
	if postProcess {
		return OutputModePreDecoded
	}
	return OutputModeRawAnchors
}

// String returns a short name for the mode.
func (m OutputMode) String() string {
	switch m {
	case OutputModePreDecoded:
		return "pre-decoded"
	case OutputModeRawAnchors:
		return "raw-anchors"
	default:
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
}

// OutputIndices selects which model outputs carry which tensor.
type OutputIndices struct {
	// Detections is the [N,6] output in pre-decoded mode.
	Detections int `json:"detections" yaml:"detections" mapstructure:"detections"`
	// Boxes is the [N,4] output in raw-anchor mode.
	Boxes int `json:"boxes"      yaml:"boxes"      mapstructure:"boxes"`
	// Scores is the [N,C] output in raw-anchor mode.
	Scores int `json:"scores"     yaml:"scores"     mapstructure:"scores"`
}

// DefaultOutputIndices returns the output layout of the exported RT-DETR models.
func DefaultOutputIndices() OutputIndices {
	return OutputIndices{Detections: 0, Boxes: 0, Scores: 1}
}

// BaseModel is the base model for all models.
type BaseModel struct {
	Name    Name
	Family  Family
	Path    string
	Mode    OutputMode
	Width   int
	Height  int
	Outputs OutputIndices
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name    Name          `json:"name"    yaml:"name"`
	Path    string        `json:"path"    yaml:"path"`
	Family  Family        `json:"family"  yaml:"family"`
	Mode    OutputMode    `json:"mode"    yaml:"mode"`
	Width   int           `json:"width"   yaml:"width"`
	Height  int           `json:"height"  yaml:"height"`
	Outputs OutputIndices `json:"outputs" yaml:"outputs"`
}
