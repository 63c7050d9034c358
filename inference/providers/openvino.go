// Package providers - OpenVINO based execution provider.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// Precision represents the inference precision requested from a device.
type Precision string

// Precision constants are the supported precisions for inference.
const (
	PrecisionFP32     Precision = "FP32"
	PrecisionFP16     Precision = "FP16"
	PrecisionAccuracy Precision = "ACCURACY"
)

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type with these values at runtime, e.g. "CPU",
	// "GPU", "GPU.0", "NPU" or "AUTO:GPU,CPU".
	DeviceType string `json:"deviceType"           yaml:"deviceType"`
	// Supported precisions for HW {CPU:FP32, GPU:[FP32, FP16, ACCURACY], NPU:FP16}. Empty
	// keeps the default precision of the device.
	Precision Precision `json:"precision"            yaml:"precision"`
	// Overrides the accelerator default value of number of threads with this value at runtime.
	NumOfThreads int `json:"numOfThreads"         yaml:"numOfThreads"`
	// Overrides the accelerator default streams with this value at runtime.
	NumStreams int `json:"numStreams"           yaml:"numStreams"`
	// Directory for compiled blob caching.
	CacheDir string `json:"cacheDir"             yaml:"cacheDir"`
	// This option enables rewriting dynamic shaped models to static shape at runtime and execute.
	DisableDynamicShapes bool `json:"disableDynamicShapes" yaml:"disableDynamicShapes"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (OpenVINOOptions) isProviderOptions() {}

// ToNativeConfig converts the options to the key/value form the runtime expects. Unset
// options are omitted so the device defaults apply.
func (o OpenVINOOptions) ToNativeConfig() map[string]string {
	config := map[string]string{}
	if o.DeviceType != "" {
		config["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		config["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		config["num_of_threads"] = fmt.Sprintf("%d", o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		config["num_streams"] = fmt.Sprintf("%d", o.NumStreams)
	}
	if o.CacheDir != "" {
		config["cache_dir"] = o.CacheDir
	}
	if o.DisableDynamicShapes {
		config["disable_dynamic_shapes"] = "true"
	}
	return config
}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Options returns the options of the OpenVINO provider.
func (p *OpenVINOProvider) Options() ProviderOptions {
	return p.options
}

// Append registers the OpenVINO provider on the session options.
func (p *OpenVINOProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderOpenVINO(p.options.ToNativeConfig()); err != nil {
		return fmt.Errorf("error enabling OpenVINO: %w", err)
	}
	return nil
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(args OpenVINOOptions) *OpenVINOProvider {
	return &OpenVINOProvider{options: args}
}
