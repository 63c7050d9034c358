// Package providers - Execution providers and compute targets for the ONNX Runtime.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// Config selects an execution provider and its options.
type Config struct {
	// Backend specifies the backend to use
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// Options contains provider-specific configuration options
	Options ProviderOptions `json:"options" yaml:"options"`

	// Device is the compute target name the config was parsed from, e.g. "GPU.0".
	Device string `json:"device" yaml:"device"`
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	Backend() ProviderBackend
	Options() ProviderOptions
	// Append registers the provider on the session options. The CPU provider is
	// built in and appends nothing.
	Append(options *ort.SessionOptions) error
}

// NewProvider creates a new provider based on the required backend.
//
// Arguments:
//   - cfg: The provider configuration. Nil options select the CPU provider.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the options type is not supported.
func NewProvider(cfg Config) (ExecutionProvider, error) {
	switch opts := cfg.Options.(type) {
	case nil:
		return NewCPUProvider(CPUOptions{}), nil
	case CPUOptions:
		return NewCPUProvider(opts), nil
	case CoreMLOptions:
		return NewCoreMLProvider(opts), nil
	case OpenVINOOptions:
		return NewOpenVINOProvider(opts), nil
	case CUDAOptions:
		return NewCUDAProvider(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider options type: %T", opts)
	}
}
