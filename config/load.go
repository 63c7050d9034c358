package config

import (
	"strings"

	"github.com/nvr-ai/go-rtdetr/inference/providers"
	"github.com/nvr-ai/go-rtdetr/logger"
	"github.com/nvr-ai/go-rtdetr/models/rtdetr"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RTDETR_DECODER_THRESHOLD.
const EnvPrefix = "RTDETR"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("model.path", d.Model.Path)
	v.SetDefault("model.post_process", d.Model.PostProcess)
	v.SetDefault("model.width", d.Model.Width)
	v.SetDefault("model.height", d.Model.Height)
	v.SetDefault("model.outputs.detections", d.Model.Outputs.Detections)
	v.SetDefault("model.outputs.boxes", d.Model.Outputs.Boxes)
	v.SetDefault("model.outputs.scores", d.Model.Outputs.Scores)

	v.SetDefault("device", d.Device)

	v.SetDefault("runtime.library_path", d.Runtime.LibraryPath)
	v.SetDefault("runtime.intra_op_threads", d.Runtime.IntraOpThreads)
	v.SetDefault("runtime.inter_op_threads", d.Runtime.InterOpThreads)

	v.SetDefault("decoder.threshold", d.Decoder.Threshold)
	v.SetDefault("decoder.activation", d.Decoder.Activation)

	v.SetDefault("labels.path", d.Labels.Path)
	v.SetDefault("preprocess.channel_order", d.Preprocess.ChannelOrder)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)

	v.SetDefault("output.path", d.Output.Path)
}

// NewViper creates a viper instance layered as defaults, then the optional file, then
// RTDETR_ environment variables. Callers may bind flags on top before LoadWithViper.
//
// Arguments:
//   - path: A YAML, JSON or TOML config file. Empty skips the file layer.
//
// Returns:
//   - *viper.Viper: The instance.
//   - error: An error if the file cannot be read.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return v, nil
}

// LoadWithViper unmarshals and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Load reads the configuration from defaults, an optional file and the environment.
//
// Arguments:
//   - path: The config file. Empty uses defaults and environment only.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: A read, decode or validation error.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// Validate checks that the configuration is usable. The model path is checked by the
// model itself since it may be supplied after loading.
func (c *Config) Validate() error {
	if c.Model.Width <= 0 || c.Model.Height <= 0 {
		return errors.Wrapf(rtdetr.ErrInvalidConfig, "model.width and model.height must be > 0, got %dx%d", c.Model.Width, c.Model.Height)
	}
	o := c.Model.Outputs
	if o.Detections < 0 || o.Boxes < 0 || o.Scores < 0 {
		return errors.Wrapf(rtdetr.ErrInvalidConfig, "model.outputs must be >= 0, got %+v", o)
	}
	if !c.Model.PostProcess && o.Boxes == o.Scores {
		return errors.Wrapf(rtdetr.ErrInvalidConfig, "model.outputs.boxes and model.outputs.scores must differ, both are %d", o.Boxes)
	}
	if _, err := providers.ParseDevice(c.Device); err != nil {
		return errors.Wrap(rtdetr.ErrInvalidConfig, err.Error())
	}
	if c.Runtime.IntraOpThreads < 0 || c.Runtime.InterOpThreads < 0 {
		return errors.Wrap(rtdetr.ErrInvalidConfig, "runtime thread counts must be >= 0")
	}
	if !(c.Decoder.Threshold >= 0 && c.Decoder.Threshold <= 1) {
		return errors.Wrapf(rtdetr.ErrInvalidConfig, "decoder.threshold must be in [0, 1], got %v", c.Decoder.Threshold)
	}
	if _, err := rtdetr.NewActivation(rtdetr.ActivationKind(c.Decoder.Activation)); err != nil {
		return err
	}
	if _, err := rtdetr.ParseChannelOrder(c.Preprocess.ChannelOrder); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(rtdetr.ErrInvalidConfig, err.Error())
	}
	return nil
}
