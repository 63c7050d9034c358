// Package providers - Session option tuning.
package providers

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// SessionConfig contains the ONNX Runtime settings applied to every session.
type SessionConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" mapstructure:"graph_optimization_level"`

	// ExecutionMode controls sequential vs parallel execution
	ExecutionMode ort.ExecutionMode `json:"execution_mode"           mapstructure:"execution_mode"`

	// IntraOpNumThreads sets threads for parallelizing ops. Zero leaves the runtime default.
	IntraOpNumThreads int `json:"intra_op_num_threads"     mapstructure:"intra_op_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. Zero leaves the
	// runtime default.
	InterOpNumThreads int `json:"inter_op_num_threads"     mapstructure:"inter_op_threads"`
}

// DefaultSessionConfig returns the settings used when nothing is configured.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
		IntraOpNumThreads:      max(1, runtime.NumCPU()/2),
	}
}

// NewSessionOptions builds session options with the config applied and the provider
// appended.
//
// Arguments:
//   - config: The session settings.
//   - provider: The execution provider to register.
//
// Returns:
//   - *ort.SessionOptions: The options. The caller must destroy them.
//   - error: An error if an option or the provider could not be applied.
func NewSessionOptions(config SessionConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}

	apply := func() error {
		if err := options.SetGraphOptimizationLevel(config.GraphOptimizationLevel); err != nil {
			return err
		}
		if err := options.SetExecutionMode(config.ExecutionMode); err != nil {
			return err
		}
		if config.IntraOpNumThreads > 0 {
			if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
				return err
			}
		}
		if config.InterOpNumThreads > 0 {
			if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
				return err
			}
		}
		if provider != nil {
			return provider.Append(options)
		}
		return nil
	}

	if err := apply(); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to configure session options: %w", err)
	}

	return options, nil
}
