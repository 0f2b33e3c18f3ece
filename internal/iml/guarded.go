package iml

import (
	"sync"

	"github.com/monkeyw/imlengine/internal/mlp"
)

// Guarded wraps an IML facade behind a mutex, giving callers a literal,
// usable implementation of the concurrency contract described in the
// engine's design: "a mutex around the IML instance is sufficient" for
// serialising the control-rate thread (input push, process, output read)
// against the orchestration thread (training, dataset edits, mode
// transitions).
type Guarded[F mlp.FloatType] struct {
	mu  sync.Mutex
	iml *IML[F]
}

// NewGuarded wraps an already-constructed IML facade.
func NewGuarded[F mlp.FloatType](f *IML[F]) *Guarded[F] {
	return &Guarded[F]{iml: f}
}

func (g *Guarded[F]) SetInput(i int, v F) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.SetInput(i, v)
}

func (g *Guarded[F]) SetInputs(vs []F) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.SetInputs(vs)
}

func (g *Guarded[F]) SetOutput(j int, v F) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.SetOutput(j, v)
}

func (g *Guarded[F]) SetOutputs(vs []F) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.SetOutputs(vs)
}

func (g *Guarded[F]) GetOutputs() []F {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.GetOutputs()
}

func (g *Guarded[F]) Process() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.Process()
}

func (g *Guarded[F]) AddExample(feature, label []F) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.AddExample(feature, label)
}

func (g *Guarded[F]) SaveExample() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.SaveExample()
}

func (g *Guarded[F]) ClearDataset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.ClearDataset()
}

func (g *Guarded[F]) RandomiseWeights(scale F) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.RandomiseWeights(scale)
}

func (g *Guarded[F]) PerturbWeights(speed F) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.PerturbWeights(speed)
}

func (g *Guarded[F]) SetMode(m Mode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.SetMode(m)
}

func (g *Guarded[F]) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.iml.Mode()
}
