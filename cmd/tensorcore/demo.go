package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/autodiff"
	"github.com/born-ml/tensorcore/backend"
	"github.com/born-ml/tensorcore/internal/serialization"
	"github.com/born-ml/tensorcore/optim"
	"github.com/born-ml/tensorcore/tensor"
)

type demoConfig struct {
	Backend   string
	Optimizer string
	Steps     int
	LR        float32
	Seed      uint64
	Save      string
}

// Layer widths of the demo MLP: 5 -> 32 -> 32 -> 2, ReLU, ReLU, Tanh.
var demoLayers = []int{5, 32, 32, 2}

const demoBatch = 3

// runDemo returns the loss before the first update and after each update.
func runDemo(cfg demoConfig) ([]float32, error) {
	dev, err := backend.NewWithConfig(cfg.Backend)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	opt, err := newDemoOptimizer(cfg)
	if err != nil {
		return nil, err
	}
	defer opt.Release()

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	m, err := newMLP(dev, rng, demoLayers)
	if err != nil {
		return nil, err
	}
	defer m.release()

	x, err := normal(dev, rng, tensor.Shape{demoBatch, demoLayers[0]})
	if err != nil {
		return nil, err
	}
	defer x.Release()
	y, err := normal(dev, rng, tensor.Shape{demoBatch, demoLayers[len(demoLayers)-1]})
	if err != nil {
		return nil, err
	}
	defer y.Release()

	losses := make([]float32, 0, cfg.Steps+1)
	for step := 0; step <= cfg.Steps; step++ {
		loss, err := m.step(x, y, opt, step < cfg.Steps)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", step)
		}
		klog.V(1).Infof("train-demo: step %d loss %.6f", step, loss)
		losses = append(losses, loss)
	}

	if cfg.Save != "" {
		if err := m.save(cfg.Save, opt); err != nil {
			return nil, err
		}
	}
	return losses, nil
}

func newDemoOptimizer(cfg demoConfig) (optim.Optimizer[float32], error) {
	switch cfg.Optimizer {
	case "sgd":
		return optim.NewSGD(optim.SGDConfig[float32]{
			LR:       cfg.LR,
			Momentum: optim.Momentum[float32]{Kind: optim.MomentumNesterov, Mu: 0.9},
		}), nil
	case "rmsprop":
		return optim.NewRMSprop(optim.RMSpropConfig[float32]{LR: cfg.LR}), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

// mlp holds weights shaped (out, in) and biases shaped (out), alternating.
type mlp struct {
	params []*autodiff.Tensor[float32]
}

func newMLP(dev tensor.Device, rng *rand.Rand, widths []int) (*mlp, error) {
	m := &mlp{}
	for i := 1; i < len(widths); i++ {
		in, out := widths[i-1], widths[i]
		bound := 1 / math.Sqrt(float64(in))
		w, err := uniform(dev, rng, tensor.Shape{out, in}, bound)
		if err != nil {
			m.release()
			return nil, err
		}
		m.params = append(m.params, autodiff.NewTensor(w))
		b, err := uniform(dev, rng, tensor.Shape{out}, bound)
		if err != nil {
			m.release()
			return nil, err
		}
		m.params = append(m.params, autodiff.NewTensor(b))
	}
	return m, nil
}

func (m *mlp) release() {
	for _, p := range m.params {
		p.Release()
	}
}

// step computes the mean squared error of the model on (x, y) and, when
// update is set, applies one optimizer update.
func (m *mlp) step(x, y *tensor.Storage[float32], opt optim.Optimizer[float32], update bool) (float32, error) {
	tape := autodiff.NewTape()
	defer tape.Discard()

	var live []*autodiff.Tensor[float32]
	defer func() {
		for _, t := range live {
			t.Release()
		}
	}()
	keep := func(t *autodiff.Tensor[float32], err error) (*autodiff.Tensor[float32], error) {
		if err == nil {
			live = append(live, t)
		}
		return t, err
	}

	h := autodiff.NewTensor(x.Clone())
	live = append(live, h)
	for i := 0; i < len(m.params); i += 2 {
		w, b := m.params[i].Trace(tape), m.params[i+1].Trace(tape)
		out, err := linear(h, w, b, keep)
		if err != nil {
			return 0, errors.Wrapf(err, "layer %d", i/2)
		}
		if i+2 < len(m.params) {
			h, err = keep(autodiff.ReLU(out))
		} else {
			h, err = keep(autodiff.Tanh(out))
		}
		if err != nil {
			return 0, err
		}
	}

	target := autodiff.NewTensor(y.Clone())
	live = append(live, target)
	diff, err := keep(autodiff.Sub(h, target))
	if err != nil {
		return 0, err
	}
	sq, err := keep(autodiff.Square(diff))
	if err != nil {
		return 0, err
	}
	loss, err := keep(autodiff.Mean(sq))
	if err != nil {
		return 0, err
	}
	vals, err := loss.Values()
	if err != nil {
		return 0, err
	}
	if !update {
		return vals[0], nil
	}

	grads, err := loss.Backward()
	if err != nil {
		return 0, err
	}
	defer grads.Release()
	if err := opt.Update(m.params, grads); err != nil {
		return 0, err
	}
	return vals[0], nil
}

// linear computes h @ w^T + b as a broadcast product summed over the input
// axis: (B, 1, in) * (out, in) -> (B, out, in) -> (B, out).
func linear(h, w, b *autodiff.Tensor[float32],
	keep func(*autodiff.Tensor[float32], error) (*autodiff.Tensor[float32], error)) (*autodiff.Tensor[float32], error) {
	shape := h.Shape()
	h3, err := keep(autodiff.Reshape(h, tensor.Shape{shape[0], 1, shape[1]}))
	if err != nil {
		return nil, err
	}
	prod, err := keep(autodiff.Mul(h3, w))
	if err != nil {
		return nil, err
	}
	sum, err := keep(autodiff.SumTo(prod, 2))
	if err != nil {
		return nil, err
	}
	return keep(autodiff.Add(sum, b))
}

func (m *mlp) save(path string, opt optim.Optimizer[float32]) error {
	out := map[string]*tensor.Storage[float32]{}
	for i, p := range m.params {
		out[fmt.Sprintf("param.%d", i)] = p.Storage()
	}
	for key, s := range opt.StateDict(m.params) {
		out["optim."+key] = s
	}
	meta := map[string]string{"layers": fmt.Sprint(demoLayers)}
	return errors.Wrapf(serialization.SaveStorages(path, out, meta), "save %s", path)
}

func uniform(dev tensor.Device, rng *rand.Rand, shape tensor.Shape, bound float64) (*tensor.Storage[float32], error) {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32((2*rng.Float64() - 1) * bound)
	}
	return tensor.FromSlice(dev, shape, data)
}

func normal(dev tensor.Device, rng *rand.Rand, shape tensor.Shape) (*tensor.Storage[float32], error) {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return tensor.FromSlice(dev, shape, data)
}
