package main

import (
	"context"

	"github.com/nvr-ai/go-rtdetr/config"
	"github.com/nvr-ai/go-rtdetr/images"
	"github.com/nvr-ai/go-rtdetr/logger"
	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/nvr-ai/go-rtdetr/profiler"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <modelPath> <imagePath|dir> <postFlag:0|1>",
		Short: "Measure per-stage pipeline latency",
		Long: `Run the detection pipeline repeatedly on an image, or cycle through a directory of
frames, and report the mean, minimum and maximum time spent in each stage.

Examples:
  rtdetr bench rtdetr_r50.onnx street.jpg 1 --iterations 200
  rtdetr bench rtdetr_r18_raw.onnx street.jpg 0 --device GPU --warmup 10
  rtdetr bench rtdetr_r50.onnx frames/ 1 --reload --iterations 20`,
		Args: cobra.ExactArgs(3),
		RunE: runBench,
	}

	f := cmd.Flags()
	f.Int("iterations", 100, "Number of measured runs")
	f.Int("warmup", 3, "Number of unmeasured runs before measuring")
	f.Int("max-samples", 0, "Samples kept per stage, 0 for the profiler default")
	f.Bool("log-report", false, "Log the report instead of printing it")
	f.Bool("reload", false, "Load the model again before every run so load_model is measured too")

	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	postProcess, err := parsePostFlag(args[2])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	iterations, _ := cmd.Flags().GetInt("iterations")
	warmup, _ := cmd.Flags().GetInt("warmup")
	maxSamples, _ := cmd.Flags().GetInt("max-samples")
	if err := validateBenchRuns(iterations, warmup); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, args[0], "", postProcess)
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

	frames, err := images.LoadFrames(args[1])
	if err != nil {
		return err
	}

	reload, _ := cmd.Flags().GetBool("reload")
	prof := profiler.New(profiler.Options{MaxSamples: maxSamples})
	ctx := cmd.Context()

	var detections int
	if reload {
		detections, err = benchReload(ctx, cfg, table, prof, log, frames, iterations)
	} else {
		detections, err = benchShared(ctx, cfg, table, prof, log, frames, iterations, warmup)
	}
	if err != nil {
		return err
	}
	log.Infow("benchmark complete", "iterations", iterations, "frames", len(frames), "detections", detections)

	if logReport, _ := cmd.Flags().GetBool("log-report"); logReport {
		prof.LogReport(log)
		return nil
	}
	return prof.WriteReport(cmd.OutOrStdout())
}

// benchShared loads the model once, warms it up and measures iterations runs.
func benchShared(ctx context.Context, cfg *config.Config, table labels.Table, prof *profiler.Profiler,
	log *zap.SugaredLogger, frames []images.Frame, iterations, warmup int,
) (int, error) {
	engine, err := newEngine(cfg, table, prof, log)
	if err != nil {
		return 0, err
	}
	defer engine.Close()

	if err := engine.WarmUp(ctx, warmup); err != nil {
		return 0, errors.Wrap(err, "warmup failed")
	}
	prof.Reset()

	detections := 0
	for i := 0; i < iterations; i++ {
		frame := frames[i%len(frames)]
		prediction, err := engine.Predict(ctx, frame.Image)
		if err != nil {
			return 0, errors.Wrapf(err, "iteration %d (%s)", i, frame.Path)
		}
		detections += len(prediction.Detections)
	}
	return detections, nil
}

// benchReload builds a fresh engine for every run.
func benchReload(ctx context.Context, cfg *config.Config, table labels.Table, prof *profiler.Profiler,
	log *zap.SugaredLogger, frames []images.Frame, iterations int,
) (int, error) {
	quiet := logger.Nop()
	detections := 0
	for i := 0; i < iterations; i++ {
		frame := frames[i%len(frames)]
		log.Debugw("model predict", "iteration", i)

		engine, err := newEngine(cfg, table, prof, quiet)
		if err != nil {
			return 0, err
		}
		prediction, err := engine.Predict(ctx, frame.Image)
		if cerr := engine.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return 0, errors.Wrapf(err, "iteration %d (%s)", i, frame.Path)
		}
		detections += len(prediction.Detections)
	}
	return detections, nil
}

func validateBenchRuns(iterations, warmup int) error {
	if iterations <= 0 {
		return errors.Errorf("iterations must be > 0, got %d", iterations)
	}
	if warmup < 0 {
		return errors.Errorf("warmup must be >= 0, got %d", warmup)
	}
	return nil
}
