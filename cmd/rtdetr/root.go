package main

import (
	"encoding/json"
	"io"

	"github.com/nvr-ai/go-rtdetr/config"
	"github.com/nvr-ai/go-rtdetr/images"
	"github.com/nvr-ai/go-rtdetr/inference"
	"github.com/nvr-ai/go-rtdetr/inference/providers"
	"github.com/nvr-ai/go-rtdetr/logger"
	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/nvr-ai/go-rtdetr/models/rtdetr"
	"github.com/nvr-ai/go-rtdetr/profiler"
	"github.com/nvr-ai/go-rtdetr/visualize"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"device":     "device",
	"threshold":  "decoder.threshold",
	"activation": "decoder.activation",
	"width":      "model.width",
	"height":     "model.height",
	"library":    "runtime.library_path",
	"log-level":  "log.level",
	"log-json":   "log.json",
	"output":     "output.path",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rtdetr <modelPath> <imagePath> <labelPath> <postFlag:0|1>",
		Short: "Run RT-DETR object detection on an image",
		Long: `Run RT-DETR object detection on an image and write an annotated copy.

postFlag selects the model output layout:
  1  the model decodes its own detections as [class, score, x1, y1, x2, y2] rows
  0  the model emits raw per-anchor class logits and normalized center boxes

labelPath is a newline separated label file, "builtin:coco", or "-" for raw class ids.

Examples:
  rtdetr rtdetr_r50.onnx street.jpg coco.txt 1
  rtdetr rtdetr_r18_raw.onnx street.jpg builtin:coco 0 --device GPU --threshold 0.4
  rtdetr model.onnx frame.png - 1 --json --output ""`,
		Args: cobra.ExactArgs(4),
		RunE: runDetect,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (yaml, json or toml)")
	pf.String("device", "CPU", "Inference device: CPU, GPU[.N], NPU, AUTO, CUDA[:N] or COREML")
	pf.Float32("threshold", rtdetr.DefaultThreshold, "Minimum detection score")
	pf.String("activation", string(rtdetr.ActivationSigmoid), "Score activation for raw outputs: sigmoid or graph")
	pf.Int("width", rtdetr.DefaultTargetSize.Width, "Model input width")
	pf.Int("height", rtdetr.DefaultTargetSize.Height, "Model input height")
	pf.Bool("bgr", false, "Feed the model BGR channel order instead of RGB")
	pf.String("library", "", "ONNX Runtime shared library path")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.Bool("log-json", false, "Write logs as JSON")

	f := cmd.Flags()
	f.String("output", "result.jpg", "Annotated image path, empty to skip writing")
	f.Bool("json", false, "Write detections as JSON to stdout")
	f.Bool("show", false, "Show the annotated image in a window")

	cmd.AddCommand(newBenchCmd())
	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	postProcess, err := parsePostFlag(args[3])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd, args[0], args[2], postProcess)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	table, err := labels.Open(cfg.Labels.Path)
	if err != nil {
		return errors.Wrap(err, "failed to load labels")
	}

	engine, err := newEngine(cfg, table, nil, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	img, err := images.Load(args[1])
	if err != nil {
		return err
	}

	prediction, err := engine.Predict(cmd.Context(), img)
	if err != nil {
		return err
	}
	log.Infow("detection complete", "image", args[1], "detections", len(prediction.Detections))

	renderer := visualize.NewRenderer(visualize.WithLogger(logger.Component(log, "visualize")))
	annotated := renderer.Draw(img, prediction.Detections)

	if cfg.Output.Path != "" {
		if err := images.Save(cfg.Output.Path, annotated); err != nil {
			return err
		}
		log.Infow("saved annotated image", "path", cfg.Output.Path)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := writeDetections(cmd.OutOrStdout(), prediction); err != nil {
			return err
		}
	} else {
		printSummary(prediction, cfg.Output.Path)
	}

	if show, _ := cmd.Flags().GetBool("show"); show {
		if err := images.Show("rtdetr", annotated); err != nil {
			return err
		}
	}
	return nil
}

// parsePostFlag converts the postFlag argument into the model.post_process setting.
//
// Arguments:
//   - s: "1" for models that decode their own detections, "0" for raw outputs.
//
// Returns:
//   - bool: The post_process setting.
//   - error: An error for any other value.
func parsePostFlag(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, errors.Errorf("postFlag must be 0 or 1, got %q", s)
	}
}

// loadConfig layers the positional arguments and changed flags over the config file and
// environment.
//
// Arguments:
//   - cmd: The command whose flags have been parsed.
//   - modelPath: The model file.
//   - labelPath: The label source. Empty keeps the configured source.
//   - postProcess: The output layout selected by postFlag.
//
// Returns:
//   - *config.Config: The validated configuration.
//   - error: An error if the configuration cannot be read or is invalid.
func loadConfig(cmd *cobra.Command, modelPath, labelPath string, postProcess bool) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	v, err := config.NewViper(path)
	if err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, errors.Wrapf(err, "failed to bind flag %s", name)
		}
	}

	if bgr, _ := cmd.Flags().GetBool("bgr"); bgr {
		v.Set("preprocess.channel_order", "bgr")
	}

	v.Set("model.path", modelPath)
	v.Set("model.post_process", postProcess)
	if labelPath != "" {
		v.Set("labels.path", labelPath)
	}

	return config.LoadWithViper(v)
}

// newEngine builds the detection engine described by cfg.
//
// Arguments:
//   - cfg: The validated configuration.
//   - table: The label table, nil for raw class ids.
//   - prof: The profiler, nil for a new one.
//   - log: The logger.
//
// Returns:
//   - inference.Engine: The engine.
//   - error: An error if the model or runtime cannot be loaded.
func newEngine(cfg *config.Config, table labels.Table, prof *profiler.Profiler, log *zap.SugaredLogger) (inference.Engine, error) {
	provider, err := providers.ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	activation, err := rtdetr.NewActivation(rtdetr.ActivationKind(cfg.Decoder.Activation))
	if err != nil {
		return nil, err
	}

	order, err := rtdetr.ParseChannelOrder(cfg.Preprocess.ChannelOrder)
	if err != nil {
		return nil, err
	}

	log.Infow("loading model", "path", cfg.Model.Path, "device", cfg.Device, "mode", cfg.Mode().String())

	builder := inference.NewEngineBuilder().
		WithProvider(provider).
		WithRuntime(cfg.Runtime.LibraryPath, cfg.SessionConfig()).
		WithModel(cfg.ModelArgs()).
		WithLabels(table).
		WithDecoder(cfg.DecoderConfig(), activation).
		WithChannelOrder(order).
		WithLogger(log)
	if prof != nil {
		builder = builder.WithProfiler(prof)
	}

	engine, err := builder.Build()
	if err != nil {
		if c, ok := activation.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return engine, nil
}

// printSummary prints a human readable result line to the terminal.
func printSummary(prediction inference.Prediction, output string) {
	n := len(prediction.Detections)
	if n == 0 {
		pterm.Warning.Println("No detections above the threshold")
	} else {
		pterm.Success.Printf("%d detections\n", n)
	}
	if output != "" {
		pterm.Info.Printf("Annotated image: %s\n", output)
	}
}

// writeDetections writes the prediction as indented JSON.
func writeDetections(w io.Writer, prediction inference.Prediction) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(prediction), "failed to encode detections")
}
