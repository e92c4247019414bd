// Package lstm implements the forecasting model: a single-layer LSTM over
// scaled feature windows with a dense head that emits every horizon step in
// one forward pass.
package lstm

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"StockCast/internal/domain/models"
)

// Config fixes the network shape. Steps is the input window length, Outputs
// the number of future values predicted jointly.
type Config struct {
	InputSize  int
	HiddenSize int
	Steps      int
	Outputs    int
	Seed       int64
}

func (c Config) validate() error {
	if c.InputSize <= 0 || c.HiddenSize <= 0 || c.Steps <= 0 || c.Outputs <= 0 {
		return fmt.Errorf("invalid network config %+v", c)
	}
	return nil
}

// Network is a trained or trainable LSTM. All parameters are dense matrices;
// column vectors are n-by-1. The zero value is not usable, construct with
// New or LoadNetwork.
type Network struct {
	cfg Config

	// Gate weights act on the concatenation [h; x] of the previous hidden
	// state and the current input row.
	wf, wi, wg, wo *mat.Dense
	bf, bi, bg, bo *mat.Dense

	// Dense head mapping the final hidden state to Outputs values.
	why *mat.Dense
	by  *mat.Dense
}

// New constructs a network with Xavier-initialized weights. The same seed
// always yields the same initial parameters.
func New(cfg Config) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	h, m := cfg.HiddenSize, cfg.HiddenSize+cfg.InputSize
	n := &Network{
		cfg: cfg,
		wf:  xavier(rng, h, m),
		wi:  xavier(rng, h, m),
		wg:  xavier(rng, h, m),
		wo:  xavier(rng, h, m),
		bf:  mat.NewDense(h, 1, nil),
		bi:  mat.NewDense(h, 1, nil),
		bg:  mat.NewDense(h, 1, nil),
		bo:  mat.NewDense(h, 1, nil),
		why: xavier(rng, cfg.Outputs, h),
		by:  mat.NewDense(cfg.Outputs, 1, nil),
	}
	// Forget-gate bias starts at one so early training keeps cell memory.
	for i := 0; i < h; i++ {
		n.bf.Set(i, 0, 1)
	}
	return n, nil
}

func xavier(rng *rand.Rand, rows, cols int) *mat.Dense {
	limit := math.Sqrt(6.0 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return mat.NewDense(rows, cols, data)
}

// Config returns the network shape.
func (n *Network) Config() Config { return n.cfg }

// Predict runs one forward pass over a scaled window laid out row per
// timestep and returns the scaled multi-step output, nearest step first.
// Wrong window length or feature count fails with models.ErrShapeMismatch.
func (n *Network) Predict(window [][]float64) ([]float64, error) {
	if err := n.checkShape(window); err != nil {
		return nil, err
	}
	_, y := n.forward(window, nil)
	out := make([]float64, n.cfg.Outputs)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out, nil
}

func (n *Network) checkShape(window [][]float64) error {
	if len(window) != n.cfg.Steps {
		return fmt.Errorf("window has %d rows, model trained on %d: %w",
			len(window), n.cfg.Steps, models.ErrShapeMismatch)
	}
	for _, row := range window {
		if len(row) != n.cfg.InputSize {
			return fmt.Errorf("window row has %d features, model trained on %d: %w",
				len(row), n.cfg.InputSize, models.ErrShapeMismatch)
		}
	}
	return nil
}

// stepCache keeps one timestep's activations for backpropagation.
type stepCache struct {
	z, f, i, g, o *mat.Dense
	c, tc, h      *mat.Dense
	cPrev         *mat.Dense
}

// forward runs the window through the cell. When caches is non-nil it is
// filled with one entry per timestep for the backward pass.
func (n *Network) forward(window [][]float64, caches *[]stepCache) (hLast, y *mat.Dense) {
	h, d := n.cfg.HiddenSize, n.cfg.InputSize
	hv := mat.NewDense(h, 1, nil)
	cv := mat.NewDense(h, 1, nil)

	for _, row := range window {
		z := mat.NewDense(h+d, 1, nil)
		for i := 0; i < h; i++ {
			z.Set(i, 0, hv.At(i, 0))
		}
		for i := 0; i < d; i++ {
			z.Set(h+i, 0, row[i])
		}

		f := gate(n.wf, z, n.bf, sigmoid)
		ig := gate(n.wi, z, n.bi, sigmoid)
		g := gate(n.wg, z, n.bg, math.Tanh)
		o := gate(n.wo, z, n.bo, sigmoid)

		cPrev := cv
		cv = mat.NewDense(h, 1, nil)
		cv.MulElem(f, cPrev)
		tmp := mat.NewDense(h, 1, nil)
		tmp.MulElem(ig, g)
		cv.Add(cv, tmp)

		tc := mat.NewDense(h, 1, nil)
		tc.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, cv)
		hv = mat.NewDense(h, 1, nil)
		hv.MulElem(o, tc)

		if caches != nil {
			*caches = append(*caches, stepCache{
				z: z, f: f, i: ig, g: g, o: o,
				c: cv, tc: tc, h: hv, cPrev: cPrev,
			})
		}
	}

	y = mat.NewDense(n.cfg.Outputs, 1, nil)
	y.Mul(n.why, hv)
	y.Add(y, n.by)
	return hv, y
}

func gate(w, z, b *mat.Dense, act func(float64) float64) *mat.Dense {
	r, _ := w.Dims()
	out := mat.NewDense(r, 1, nil)
	out.Mul(w, z)
	out.Add(out, b)
	out.Apply(func(_, _ int, v float64) float64 { return act(v) }, out)
	return out
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
