// Package inference - Inference sessions.
package inference

import (
	"fmt"
	"sync"

	"github.com/nvr-ai/go-rtdetr/inference/providers"
	"github.com/nvr-ai/go-rtdetr/logger"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// ErrUnknownInput is returned when a tensor is fed under a name the model does not declare.
var ErrUnknownInput = errors.New("unknown model input")

// Runner executes a loaded model on named input tensors.
type Runner interface {
	// InputNames returns the declared input names in model order.
	InputNames() []string
	// Infer runs the model and returns the outputs keyed by their index.
	Infer(inputs map[string]*tensor.Dense) (map[int]*tensor.Dense, error)
	Close() error
}

// NewSessionArgs contains the arguments for creating a session.
type NewSessionArgs struct {
	// ModelPath is the path to the ONNX file.
	ModelPath string
	// LibraryPath overrides the ONNX Runtime shared library location.
	LibraryPath string
	// Provider is the execution provider to register. Nil selects the CPU provider.
	Provider providers.ExecutionProvider
	// Config tunes the session.
	Config providers.SessionConfig
	// Logger receives load diagnostics. Nil discards them.
	Logger *zap.SugaredLogger
}

// Session represents a model session from the onnxruntime.
type Session struct {
	session *ort.DynamicAdvancedSession
	inputs  []ort.InputOutputInfo
	outputs []ort.InputOutputInfo
	log     *zap.SugaredLogger
}

var (
	environmentOnce sync.Once
	environmentErr  error
)

// initEnvironment loads the shared library and initializes the runtime once per process.
func initEnvironment(libraryPath string) error {
	environmentOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		path, err := providers.SharedLibPath(libraryPath)
		if err != nil {
			environmentErr = err
			return
		}
		ort.SetSharedLibraryPath(path)
		if err := ort.InitializeEnvironment(); err != nil {
			environmentErr = fmt.Errorf("failed to initialize onnxruntime from %s: %w", path, err)
		}
	})
	return environmentErr
}

// NewSession loads a model and discovers its inputs and outputs.
//
// Arguments:
//   - args: The session arguments.
//
// Returns:
//   - *Session: The session.
//   - error: An error if the runtime or the model could not be loaded.
func NewSession(args NewSessionArgs) (*Session, error) {
	log := args.Logger
	if log == nil {
		log = logger.Nop()
	}

	if err := initEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(args.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model io info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares %d inputs and %d outputs", args.ModelPath, len(inputs), len(outputs))
	}

	for _, in := range inputs {
		log.Debugw("model input", "name", in.Name, "shape", in.Dimensions.String(), "type", in.DataType)
	}
	for i, out := range outputs {
		log.Debugw("model output", "index", i, "name", out.Name, "shape", out.Dimensions.String(), "type", out.DataType)
	}

	provider := args.Provider
	if provider == nil {
		provider = providers.NewCPUProvider(providers.CPUOptions{})
	}

	options, err := providers.NewSessionOptions(args.Config, provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(args.ModelPath, names(inputs), names(outputs), options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.Infow("model loaded", "path", args.ModelPath, "provider", provider.Backend())

	return &Session{
		session: session,
		inputs:  inputs,
		outputs: outputs,
		log:     log,
	}, nil
}

// InputNames returns the declared input names in model order.
func (s *Session) InputNames() []string {
	return names(s.inputs)
}

// Infer runs the model on the named inputs.
//
// Arguments:
//   - inputs: The input tensors keyed by declared input name. Every declared input must
//     be present.
//
// Returns:
//   - map[int]*tensor.Dense: The output tensors keyed by output index.
//   - error: ErrUnknownInput for an undeclared or missing name, or the runtime error.
func (s *Session) Infer(inputs map[string]*tensor.Dense) (map[int]*tensor.Dense, error) {
	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	if err := s.checkInputs(inputs); err != nil {
		return nil, err
	}

	values := make([]ort.Value, 0, len(s.inputs))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()

	for _, info := range s.inputs {
		dense := inputs[info.Name]
		data, ok := dense.Data().([]float32)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownInput, "input %q is %s, want float32", info.Name, dense.Dtype())
		}
		value, err := ort.NewTensor(ort.NewShape(shape64(dense.Shape())...), data)
		if err != nil {
			return nil, fmt.Errorf("failed to create input %q: %w", info.Name, err)
		}
		values = append(values, value)
	}

	outputs := make([]ort.Value, len(s.outputs))
	if err := s.session.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	result := make(map[int]*tensor.Dense, len(outputs))
	for i, v := range outputs {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			s.log.Debugw("skipping non-float output", "index", i, "name", s.outputs[i].Name)
			continue
		}
		data := append([]float32(nil), t.GetData()...)
		shape := shapeInt(t.GetShape())
		if len(shape) == 0 {
			shape = []int{len(data)}
		}
		result[i] = tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
	}

	return result, nil
}

func (s *Session) checkInputs(inputs map[string]*tensor.Dense) error {
	declared := make(map[string]bool, len(s.inputs))
	for _, info := range s.inputs {
		declared[info.Name] = true
		if inputs[info.Name] == nil {
			return errors.Wrapf(ErrUnknownInput, "missing input %q", info.Name)
		}
	}
	for name := range inputs {
		if !declared[name] {
			return errors.Wrapf(ErrUnknownInput, "%q", name)
		}
	}
	return nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func names(infos []ort.InputOutputInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

func shape64(shape tensor.Shape) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		out[i] = int64(d)
	}
	return out
}

func shapeInt(shape ort.Shape) []int {
	out := make([]int, len(shape))
	for i, d := range shape {
		out[i] = int(d)
	}
	return out
}
