package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-rtdetr/inference/providers"
	"github.com/nvr-ai/go-rtdetr/models/model"
	"github.com/nvr-ai/go-rtdetr/models/rtdetr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, model.OutputModePreDecoded, cfg.Mode())
	assert.Equal(t, "CPU", cfg.Device)
	assert.Equal(t, float32(0.5), cfg.Decoder.Threshold)
	assert.Equal(t, "result.jpg", cfg.Output.Path)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "rtdetr.yaml", `
model:
  path: /models/rtdetr_r50.onnx
  post_process: false
  width: 512
  height: 384
  outputs:
    boxes: 1
    scores: 0
device: GPU.0
runtime:
  intra_op_threads: 4
decoder:
  threshold: 0.35
  activation: graph
labels:
  path: builtin:coco
preprocess:
  channel_order: bgr
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/models/rtdetr_r50.onnx", cfg.Model.Path)
	assert.Equal(t, model.OutputModeRawAnchors, cfg.Mode())
	assert.Equal(t, model.OutputIndices{Detections: 0, Boxes: 1, Scores: 0}, cfg.Model.Outputs)
	assert.Equal(t, "GPU.0", cfg.Device)
	assert.InDelta(t, 0.35, cfg.Decoder.Threshold, 1e-6)
	assert.Equal(t, "graph", cfg.Decoder.Activation)
	assert.Equal(t, "builtin:coco", cfg.Labels.Path)
	assert.Equal(t, "bgr", cfg.Preprocess.ChannelOrder)

	args := cfg.ModelArgs()
	assert.Equal(t, model.ModelNameRTDETR, args.Name)
	assert.Equal(t, 512, args.Width)
	assert.Equal(t, 384, args.Height)
	assert.Equal(t, model.OutputModeRawAnchors, args.Mode)

	dc := cfg.DecoderConfig()
	assert.Equal(t, rtdetr.TargetSize{Width: 512, Height: 384}, dc.Target)

	sc := cfg.SessionConfig()
	assert.Equal(t, 4, sc.IntraOpNumThreads)
	assert.Equal(t, providers.DefaultSessionConfig().InterOpNumThreads, sc.InterOpNumThreads)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "rtdetr.yaml", "device: GPU\ndecoder:\n  threshold: 0.2\n")
	t.Setenv("RTDETR_DEVICE", "cuda:1")
	t.Setenv("RTDETR_DECODER_THRESHOLD", "0.75")
	t.Setenv("RTDETR_MODEL_POST_PROCESS", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cuda:1", cfg.Device)
	assert.InDelta(t, 0.75, cfg.Decoder.Threshold, 1e-6)
	assert.Equal(t, model.OutputModeRawAnchors, cfg.Mode())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero width", mutate: func(c *Config) { c.Model.Width = 0 }},
		{name: "negative output", mutate: func(c *Config) { c.Model.Outputs.Scores = -1 }},
		{name: "same raw outputs", mutate: func(c *Config) { c.Model.PostProcess = false; c.Model.Outputs.Scores = 0 }},
		{name: "unknown device", mutate: func(c *Config) { c.Device = "TPU" }},
		{name: "negative threads", mutate: func(c *Config) { c.Runtime.InterOpThreads = -2 }},
		{name: "threshold above one", mutate: func(c *Config) { c.Decoder.Threshold = 1.01 }},
		{name: "threshold below zero", mutate: func(c *Config) { c.Decoder.Threshold = -0.1 }},
		{name: "unknown activation", mutate: func(c *Config) { c.Decoder.Activation = "softmax" }},
		{name: "unknown channel order", mutate: func(c *Config) { c.Preprocess.ChannelOrder = "yuv" }},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "chatty" }},
	}

	base := Default()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, rtdetr.ErrInvalidConfig), err.Error())
		})
	}
}
