// Package config - Layered configuration for the detection pipeline.
package config

import (
	"github.com/nvr-ai/go-rtdetr/inference/providers"
	"github.com/nvr-ai/go-rtdetr/models/model"
	"github.com/nvr-ai/go-rtdetr/models/rtdetr"
)

// Config is the complete pipeline configuration.
type Config struct {
	Model      ModelConfig      `mapstructure:"model"      json:"model"      yaml:"model"`
	Device     string           `mapstructure:"device"     json:"device"     yaml:"device"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"    json:"runtime"    yaml:"runtime"`
	Decoder    DecoderConfig    `mapstructure:"decoder"    json:"decoder"    yaml:"decoder"`
	Labels     LabelsConfig     `mapstructure:"labels"     json:"labels"     yaml:"labels"`
	Preprocess PreprocessConfig `mapstructure:"preprocess" json:"preprocess" yaml:"preprocess"`
	Log        LogConfig        `mapstructure:"log"        json:"log"        yaml:"log"`
	Output     OutputConfig     `mapstructure:"output"     json:"output"     yaml:"output"`
}

// ModelConfig locates the model and describes its layout.
type ModelConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
	// PostProcess is true when the exported graph already decodes its detections.
	PostProcess bool                `mapstructure:"post_process" json:"post_process" yaml:"post_process"`
	Width       int                 `mapstructure:"width"        json:"width"        yaml:"width"`
	Height      int                 `mapstructure:"height"       json:"height"       yaml:"height"`
	Outputs     model.OutputIndices `mapstructure:"outputs"      json:"outputs"      yaml:"outputs"`
}

// RuntimeConfig tunes ONNX Runtime.
type RuntimeConfig struct {
	// LibraryPath overrides the platform default shared library.
	LibraryPath    string `mapstructure:"library_path"     json:"library_path"     yaml:"library_path"`
	IntraOpThreads int    `mapstructure:"intra_op_threads" json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int    `mapstructure:"inter_op_threads" json:"inter_op_threads" yaml:"inter_op_threads"`
}

// DecoderConfig controls detection filtering.
type DecoderConfig struct {
	Threshold  float32 `mapstructure:"threshold"  json:"threshold"  yaml:"threshold"`
	Activation string  `mapstructure:"activation" json:"activation" yaml:"activation"`
}

// LabelsConfig locates the label table. Empty or "-" runs without labels; "builtin:coco"
// selects the embedded COCO table.
type LabelsConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// PreprocessConfig controls input tensor layout.
type PreprocessConfig struct {
	ChannelOrder string `mapstructure:"channel_order" json:"channel_order" yaml:"channel_order"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json"  json:"json"  yaml:"json"`
}

// OutputConfig controls where results go.
type OutputConfig struct {
	// Path is the annotated image file. Empty skips writing it.
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Model: ModelConfig{
			PostProcess: true,
			Width:       rtdetr.DefaultTargetSize.Width,
			Height:      rtdetr.DefaultTargetSize.Height,
			Outputs:     model.DefaultOutputIndices(),
		},
		Device: "CPU",
		Decoder: DecoderConfig{
			Threshold:  rtdetr.DefaultThreshold,
			Activation: string(rtdetr.ActivationSigmoid),
		},
		Preprocess: PreprocessConfig{ChannelOrder: "rgb"},
		Log:        LogConfig{Level: "info"},
		Output:     OutputConfig{Path: "result.jpg"},
	}
}

// Mode returns the output layout selected by model.post_process.
func (c *Config) Mode() model.OutputMode {
	return model.OutputModeFromFlag(c.Model.PostProcess)
}

// ModelArgs returns the arguments for building the model.
func (c *Config) ModelArgs() model.NewModelArgs {
	return model.NewModelArgs{
		Name:    model.ModelNameRTDETR,
		Path:    c.Model.Path,
		Family:  model.ModelFamilyCOCO,
		Mode:    c.Mode(),
		Width:   c.Model.Width,
		Height:  c.Model.Height,
		Outputs: c.Model.Outputs,
	}
}

// DecoderConfig returns the decoder settings for the configured model size.
func (c *Config) DecoderConfig() rtdetr.DecoderConfig {
	return rtdetr.DecoderConfig{
		Threshold: c.Decoder.Threshold,
		Target:    rtdetr.TargetSize{Width: c.Model.Width, Height: c.Model.Height},
	}
}

// SessionConfig returns the runtime session tuning.
func (c *Config) SessionConfig() providers.SessionConfig {
	s := providers.DefaultSessionConfig()
	if c.Runtime.IntraOpThreads > 0 {
		s.IntraOpNumThreads = c.Runtime.IntraOpThreads
	}
	if c.Runtime.InterOpThreads > 0 {
		s.InterOpNumThreads = c.Runtime.InterOpThreads
	}
	return s
}
