package rtdetr

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Sigmoid returns 1/(1+e^-x). NaN and infinities propagate per IEEE rules.
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// SigmoidVector applies Sigmoid elementwise and returns a new slice.
func SigmoidVector(logits []float32) []float32 {
	out := make([]float32, len(logits))
	for i, v := range logits {
		out[i] = Sigmoid(v)
	}
	return out
}

// Activation converts raw per-anchor class logits into class probabilities.
type Activation interface {
	Apply(logits []float32) ([]float32, error)
}

// ActivationKind names an Activation implementation in configuration.
type ActivationKind string

const (
	// ActivationSigmoid evaluates the sigmoid directly.
	ActivationSigmoid ActivationKind = "sigmoid"
	// ActivationGraph evaluates the sigmoid through a compiled expression graph.
	ActivationGraph ActivationKind = "graph"
)

// NewActivation creates the activation named by kind.
//
// Arguments:
//   - kind: The activation name. Empty selects ActivationSigmoid.
//
// Returns:
//   - Activation: The activation.
//   - error: ErrInvalidConfig for an unknown kind.
func NewActivation(kind ActivationKind) (Activation, error) {
	switch kind {
	case "", ActivationSigmoid:
		return SigmoidActivation{}, nil
	case ActivationGraph:
		return NewGraphActivation(), nil
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown activation %q", kind)
	}
}

// SigmoidActivation applies SigmoidVector. It never fails.
type SigmoidActivation struct{}

// Apply implements Activation.
func (SigmoidActivation) Apply(logits []float32) ([]float32, error) {
	return SigmoidVector(logits), nil
}

// sigmoidProgram is a compiled sigmoid graph for one vector length.
type sigmoidProgram struct {
	graph *G.ExprGraph
	in    *G.Node
	out   *G.Node
	vm    G.VM
}

// GraphActivation evaluates the sigmoid as a gorgonia expression graph.
//
// One graph is compiled per distinct vector length and reused. Apply is safe for
// concurrent use; evaluation is serialized.
type GraphActivation struct {
	mu       sync.Mutex
	programs map[int]*sigmoidProgram
}

// NewGraphActivation creates an empty graph activation.
func NewGraphActivation() *GraphActivation {
	return &GraphActivation{programs: make(map[int]*sigmoidProgram)}
}

// Apply implements Activation.
//
// Arguments:
//   - logits: The raw class logits.
//
// Returns:
//   - []float32: The class probabilities, as a new slice.
//   - error: An error if the graph cannot be built or run.
func (a *GraphActivation) Apply(logits []float32) ([]float32, error) {
	if len(logits) == 0 {
		return []float32{}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.program(len(logits))
	if err != nil {
		return nil, err
	}
	defer p.vm.Reset()

	input := tensor.New(tensor.WithShape(len(logits)), tensor.WithBacking(append([]float32(nil), logits...)))
	if err := G.Let(p.in, input); err != nil {
		return nil, errors.Wrap(err, "failed to bind logits")
	}
	if err := p.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "failed to run sigmoid graph")
	}

	switch v := p.out.Value().Data().(type) {
	case []float32:
		return append([]float32(nil), v...), nil
	case float32:
		return []float32{v}, nil
	default:
		return nil, errors.Errorf("unexpected sigmoid graph output %T", v)
	}
}

// program returns the compiled graph for n-element vectors, building it on first use.
func (a *GraphActivation) program(n int) (*sigmoidProgram, error) {
	if p, ok := a.programs[n]; ok {
		return p, nil
	}

	g := G.NewGraph()
	in := G.NewVector(g, tensor.Float32, G.WithShape(n), G.WithName("logits"))
	out, err := G.Sigmoid(in)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build sigmoid graph")
	}

	p := &sigmoidProgram{graph: g, in: in, out: out, vm: G.NewTapeMachine(g)}
	a.programs[n] = p
	return p, nil
}

// Close releases all compiled graphs.
func (a *GraphActivation) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var first error
	for n, p := range a.programs {
		if err := p.vm.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "failed to close sigmoid graph for length %d", n)
		}
		delete(a.programs, n)
	}
	return first
}
