// Package providers - CPU based execution provider.
package providers

import ort "github.com/yalue/onnxruntime_go"

const (
	// CPUProviderBackend uses the default ONNX Runtime CPU kernels.
	CPUProviderBackend ProviderBackend = "cpu"
)

// CPUOptions contains arguments for the CPU provider.
type CPUOptions struct {
	// Disable the CPU memory arena. Trades allocation speed for a smaller resident footprint.
	DisableMemArena bool `json:"disableMemArena" yaml:"disableMemArena"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CPUOptions) isProviderOptions() {}

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct {
	options CPUOptions
}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Options returns the options of the CPU provider.
func (p *CPUProvider) Options() ProviderOptions {
	return p.options
}

// Append applies the CPU options. The CPU provider itself is always registered.
func (p *CPUProvider) Append(options *ort.SessionOptions) error {
	if p.options.DisableMemArena {
		return options.SetCpuMemArena(false)
	}
	return nil
}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider(args CPUOptions) *CPUProvider {
	return &CPUProvider{options: args}
}
