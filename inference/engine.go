// Package inference - Inference engine interface and implementations.
package inference

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/nvr-ai/go-rtdetr/inference/providers"
	"github.com/nvr-ai/go-rtdetr/logger"
	"github.com/nvr-ai/go-rtdetr/models/labels"
	"github.com/nvr-ai/go-rtdetr/models/model"
	"github.com/nvr-ai/go-rtdetr/models/postprocess"
	"github.com/nvr-ai/go-rtdetr/models/rtdetr"
	"github.com/nvr-ai/go-rtdetr/profiler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned by Predict after Close.
var ErrEngineClosed = errors.New("engine is closed")

// Prediction is the result of running one image through the engine.
type Prediction struct {
	Detections []postprocess.Detection `json:"detections"`
	Scale      rtdetr.ScaleMetadata    `json:"scale"`
}

// Engine defines the interface for ML inference engines
type Engine interface {
	Predict(ctx context.Context, img image.Image) (Prediction, error)
	// WarmUp runs the pipeline on a blank frame so first-call allocations are not measured.
	WarmUp(ctx context.Context, runs int) error
	Profiler() *profiler.Profiler
	Close() error
}

// EngineBuilder assembles an Engine with a fluent API. The first error is kept and
// returned from Build.
type EngineBuilder struct {
	provider      providers.ExecutionProvider
	sessionConfig providers.SessionConfig
	libraryPath   string
	model         *rtdetr.RTDETR
	runner        Runner
	resolver      *labels.Resolver
	decoderConfig *rtdetr.DecoderConfig
	activation    rtdetr.Activation
	channelOrder  rtdetr.ChannelOrder
	log           *zap.SugaredLogger
	profiler      *profiler.Profiler
	err           error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{
		sessionConfig: providers.DefaultSessionConfig(),
		log:           logger.Nop(),
	}
}

// WithProvider sets the provider for the engine.
//
// Arguments:
//   - args: The provider configuration, usually from providers.ParseDevice.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithProvider(args providers.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}

	provider, err := providers.NewProvider(args)
	if err != nil {
		b.err = err
		return b
	}
	b.provider = provider
	return b
}

// WithRuntime sets the shared library location and session tuning.
func (b *EngineBuilder) WithRuntime(libraryPath string, cfg providers.SessionConfig) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.libraryPath = libraryPath
	b.sessionConfig = cfg
	return b
}

// WithModel sets the model for the engine.
//
// Arguments:
//   - args: The model arguments.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(args model.NewModelArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}
	m, err := rtdetr.NewModel(args)
	if err != nil {
		b.err = err
		return b
	}
	b.model = m
	return b
}

// WithSession uses an already loaded runner instead of opening the model file.
func (b *EngineBuilder) WithSession(runner Runner) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if runner == nil {
		b.err = errors.New("session is nil")
		return b
	}
	b.runner = runner
	return b
}

// WithLabels sets the label table. A nil table keeps raw class ids.
func (b *EngineBuilder) WithLabels(table labels.Table) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.resolver = labels.NewResolver(table)
	return b
}

// WithDecoder sets the decoding threshold and the activation for raw anchor logits. The
// decoder target is always the model input size.
//
// Arguments:
//   - cfg: The decoder configuration.
//   - activation: The activation. Nil selects the element-wise sigmoid.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDecoder(cfg rtdetr.DecoderConfig, activation rtdetr.Activation) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.decoderConfig = &cfg
	b.activation = activation
	return b
}

// WithChannelOrder sets the channel order of the input tensor.
func (b *EngineBuilder) WithChannelOrder(order rtdetr.ChannelOrder) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.channelOrder = order
	return b
}

// WithLogger sets the logger. Nil discards logs.
func (b *EngineBuilder) WithLogger(l *zap.SugaredLogger) *EngineBuilder {
	if l != nil {
		b.log = l
	}
	return b
}

// WithProfiler sets the profiler that receives stage timings.
func (b *EngineBuilder) WithProfiler(p *profiler.Profiler) *EngineBuilder {
	if p != nil {
		b.profiler = p
	}
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine. Unless a session was supplied, the model file is loaded here.
//
// Returns:
//   - Engine: The engine.
//   - error: The first builder error, or an error from loading the model.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.model == nil {
		return nil, errors.New("model not configured")
	}

	prof := b.profiler
	if prof == nil {
		prof = profiler.New(profiler.Options{})
	}

	preprocessor, err := rtdetr.NewPreprocessor(b.model.Target(), rtdetr.WithChannelOrder(b.channelOrder))
	if err != nil {
		return nil, err
	}

	cfg := rtdetr.DefaultDecoderConfig()
	if b.decoderConfig != nil {
		cfg = *b.decoderConfig
	}
	cfg.Target = b.model.Target()

	activation := b.activation
	if activation == nil {
		activation = rtdetr.SigmoidActivation{}
	}

	decoder, err := rtdetr.NewDecoder(cfg,
		rtdetr.WithResolver(b.resolver),
		rtdetr.WithActivation(activation),
		rtdetr.WithLogger(logger.Component(b.log, "decoder")),
	)
	if err != nil {
		return nil, err
	}

	runner := b.runner
	if runner == nil {
		stop := prof.StartStage(profiler.StageLoadModel)
		session, err := NewSession(NewSessionArgs{
			ModelPath:   b.model.Options().Path,
			LibraryPath: b.libraryPath,
			Provider:    b.provider,
			Config:      b.sessionConfig,
			Logger:      logger.Component(b.log, "session"),
		})
		elapsed := stop()
		if err != nil {
			return nil, err
		}
		b.log.Infow("session ready", "load_model", elapsed)
		runner = session
	}

	return &engine{
		model:        b.model,
		runner:       runner,
		preprocessor: preprocessor,
		decoder:      decoder,
		activation:   activation,
		profiler:     prof,
		log:          b.log,
	}, nil
}

// engine implements the Engine interface.
type engine struct {
	mu           sync.Mutex
	model        *rtdetr.RTDETR
	runner       Runner
	preprocessor *rtdetr.Preprocessor
	decoder      *rtdetr.Decoder
	activation   rtdetr.Activation
	profiler     *profiler.Profiler
	log          *zap.SugaredLogger
	closed       bool
}

// Predict runs one image through preprocess, inference and decoding.
//
// Arguments:
//   - ctx: The context for the prediction. It is checked between stages.
//   - img: The image to predict.
//
// Returns:
//   - Prediction: The detections in original-image pixels and the scale used.
//   - error: The error if any. No partial detections are returned.
func (e *engine) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Prediction{}, ErrEngineClosed
	}

	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	stop := e.profiler.StartStage(profiler.StagePreprocess)
	input, scale, err := e.preprocessor.Preprocess(img)
	stop()
	if err != nil {
		return Prediction{}, errors.Wrap(err, "preprocess")
	}

	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	stop = e.profiler.StartStage(profiler.StageLoadData)
	inputs, err := e.model.Inputs(e.runner.InputNames(), input, scale)
	stop()
	if err != nil {
		return Prediction{}, errors.Wrap(err, "load data")
	}

	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	stop = e.profiler.StartStage(profiler.StageInfer)
	outputs, err := e.runner.Infer(inputs)
	stop()
	if err != nil {
		return Prediction{}, errors.Wrap(err, "infer")
	}

	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	stop = e.profiler.StartStage(profiler.StagePostprocess)
	raw, err := e.model.ParseOutputs(outputs)
	if err != nil {
		stop()
		return Prediction{}, errors.Wrap(err, "postprocess")
	}
	detections, err := e.decoder.Decode(raw, scale)
	stop()
	if err != nil {
		return Prediction{}, errors.Wrap(err, "postprocess")
	}

	e.log.Debugw("prediction",
		"mode", e.model.Mode(),
		"detections", len(detections),
		"original", scale.OriginalShape)

	return Prediction{Detections: detections, Scale: scale}, nil
}

// WarmUp runs inference on a blank frame of the model input size.
//
// Arguments:
//   - ctx: The context for the runs.
//   - runs: The number of times to run inference.
//
// Returns:
//   - error: An error if the warmup fails.
func (e *engine) WarmUp(ctx context.Context, runs int) error {
	target := e.model.Target()
	blank := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	for i := 0; i < runs; i++ {
		if _, err := e.Predict(ctx, blank); err != nil {
			return err
		}
	}
	return nil
}

// Profiler returns the profiler receiving stage timings.
func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

// Close releases the session and any activation resources.
func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	err := e.runner.Close()
	if c, ok := e.activation.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
