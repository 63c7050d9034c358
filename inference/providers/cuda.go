// Package providers - CUDA based execution provider.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// CUDAProvider implements the ExecutionProvider interface.
type CUDAProvider struct {
	options CUDAOptions
}

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID"            yaml:"deviceID"`
	// The size limit of the device memory arena in bytes. Zero leaves the arena unbounded.
	GPUMemLimit int64 `json:"gpuMemLimit"         yaml:"gpuMemLimit"`
	// The strategy for extending the device memory arena.
	// 0: kNextPowerOfTwo - subsequent extensions extend by larger amounts (multiplied by powers of
	// two)
	// 1: kSameAsRequested - extend by the requested amount
	ArenaExtendStrategy int `json:"arenaExtendStrategy" yaml:"arenaExtendStrategy"`
	// The type of search done for cuDNN convolution algorithms.
	// 0: EXHAUSTIVE, 1: HEURISTIC, 2: DEFAULT
	CudnnConvAlgoSearch int `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch"`
	// TF32 is a math mode available on NVIDIA GPUs since Ampere.
	UseTF32 bool `json:"useTF32"             yaml:"useTF32"`
}

var cudnnConvAlgoSearch = map[int]string{0: "EXHAUSTIVE", 1: "HEURISTIC", 2: "DEFAULT"}

// ToNativeConfig converts the options to the key/value form the runtime expects.
func (o CUDAOptions) ToNativeConfig() map[string]string {
	config := map[string]string{
		"device_id":              fmt.Sprintf("%d", o.DeviceID),
		"arena_extend_strategy":  "kNextPowerOfTwo",
		"cudnn_conv_algo_search": "EXHAUSTIVE",
		"use_tf32":               "0",
	}
	if o.ArenaExtendStrategy == 1 {
		config["arena_extend_strategy"] = "kSameAsRequested"
	}
	if search, ok := cudnnConvAlgoSearch[o.CudnnConvAlgoSearch]; ok {
		config["cudnn_conv_algo_search"] = search
	}
	if o.GPUMemLimit > 0 {
		config["gpu_mem_limit"] = fmt.Sprintf("%d", o.GPUMemLimit)
	}
	if o.UseTF32 {
		config["use_tf32"] = "1"
	}
	return config
}

// ToNativeProviderOptions converts the CUDA options to a CUDA provider options.
// The caller must destroy the returned options.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}
	if err := opts.Update(o.ToNativeConfig()); err != nil {
		opts.Destroy()
		return nil, err
	}
	return opts, nil
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CUDAOptions) isProviderOptions() {}

// Backend returns the backend of the CUDA provider.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Options returns the options of the CUDA provider.
func (p *CUDAProvider) Options() ProviderOptions {
	return p.options
}

// Append registers the CUDA provider on the session options.
func (p *CUDAProvider) Append(options *ort.SessionOptions) error {
	cuda, err := p.options.ToNativeProviderOptions()
	if err != nil {
		return fmt.Errorf("error converting CUDA options: %w", err)
	}
	defer cuda.Destroy()

	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("error enabling CUDA: %w", err)
	}
	return nil
}

// NewCUDAProvider creates a new CUDA provider.
func NewCUDAProvider(args CUDAOptions) *CUDAProvider {
	return &CUDAProvider{options: args}
}
