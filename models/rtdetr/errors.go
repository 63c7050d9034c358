// Package rtdetr - RT-DETR preprocessing and detection decoding.
package rtdetr

import (
	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when a component is constructed with unusable parameters.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidInput is returned when an image or model output cannot be interpreted.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexOutOfRange is returned when a class id falls outside the label table.
	ErrIndexOutOfRange = labels.ErrIndexOutOfRange
)
