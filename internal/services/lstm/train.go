package lstm

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"StockCast/internal/domain/models"
	"StockCast/internal/services/timeseries"
)

// TrainConfig tunes the optimization loop. Zero values fall back to the
// package defaults.
type TrainConfig struct {
	LearningRate float64
	Epochs       int
	Patience     int
	ClipNorm     float64
	Seed         int64
}

const (
	defaultLearningRate = 0.001
	defaultEpochs       = 80
	defaultClipNorm     = 5.0
)

func (c TrainConfig) withDefaults() TrainConfig {
	if c.LearningRate <= 0 {
		c.LearningRate = defaultLearningRate
	}
	if c.Epochs <= 0 {
		c.Epochs = defaultEpochs
	}
	if c.ClipNorm <= 0 {
		c.ClipNorm = defaultClipNorm
	}
	return c
}

// History records the optimization trace. ValLoss stays empty when no
// validation windows were given.
type History struct {
	TrainLoss []float64
	ValLoss   []float64
	BestEpoch int
}

// EpochsRun returns how many epochs actually executed.
func (h *History) EpochsRun() int { return len(h.TrainLoss) }

// Train fits the network on the training windows with single-sample Adam
// updates. Gradients come from the training windows only; validation
// windows steer early stopping and best-weight selection, falling back to
// the training loss when absent. The context is checked between epochs.
// After training the parameters hold the best epoch's weights.
func (n *Network) Train(ctx context.Context, train, val []timeseries.Window, cfg TrainConfig) (*History, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("no training windows: %w", models.ErrInsufficientData)
	}
	if err := n.checkWindows(train); err != nil {
		return nil, err
	}
	if err := n.checkWindows(val); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	opt := newAdam(cfg.LearningRate, n.tensors())
	rng := rand.New(rand.NewSource(cfg.Seed))
	order := rng.Perm(len(train))

	hist := &History{BestEpoch: -1}
	best := math.Inf(1)
	var bestState []*mat.Dense
	stale := 0

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		epochLoss := 0.0
		for _, idx := range order {
			w := train[idx]
			caches := make([]stepCache, 0, n.cfg.Steps)
			_, y := n.forward(w.Input, &caches)
			g := newGrads(n.cfg)
			epochLoss += n.backward(caches, y, w.Target, g)
			clipGrads(g.tensors(), cfg.ClipNorm)
			opt.step(n.tensors(), g.tensors())
		}
		epochLoss /= float64(len(train))
		hist.TrainLoss = append(hist.TrainLoss, epochLoss)

		monitor := epochLoss
		if len(val) > 0 {
			vl := n.EvaluateLoss(val)
			hist.ValLoss = append(hist.ValLoss, vl)
			monitor = vl
		}

		if monitor < best {
			best = monitor
			hist.BestEpoch = epoch
			bestState = cloneTensors(n.tensors())
			stale = 0
		} else {
			stale++
			if cfg.Patience > 0 && stale >= cfg.Patience {
				break
			}
		}
	}

	if bestState != nil {
		restoreTensors(n.tensors(), bestState)
	}
	return hist, nil
}

func (n *Network) checkWindows(wins []timeseries.Window) error {
	for i, w := range wins {
		if err := n.checkShape(w.Input); err != nil {
			return fmt.Errorf("window %d: %w", i, err)
		}
		if len(w.Target) != n.cfg.Outputs {
			return fmt.Errorf("window %d target has %d steps, model emits %d: %w",
				i, len(w.Target), n.cfg.Outputs, models.ErrShapeMismatch)
		}
	}
	return nil
}

// EvaluateLoss returns the mean squared error over the windows in scaled
// space without touching the weights. Zero windows evaluate to zero.
func (n *Network) EvaluateLoss(wins []timeseries.Window) float64 {
	if len(wins) == 0 {
		return 0
	}
	total := 0.0
	for _, w := range wins {
		_, y := n.forward(w.Input, nil)
		sample := 0.0
		for k := 0; k < n.cfg.Outputs; k++ {
			diff := y.At(k, 0) - w.Target[k]
			sample += diff * diff
		}
		total += sample / float64(n.cfg.Outputs)
	}
	return total / float64(len(wins))
}

// backward accumulates gradients for one sample through the whole window
// and returns its loss.
func (n *Network) backward(caches []stepCache, y *mat.Dense, target []float64, g *grads) float64 {
	h := n.cfg.HiddenSize
	outs := n.cfg.Outputs

	dy := mat.NewDense(outs, 1, nil)
	loss := 0.0
	for k := 0; k < outs; k++ {
		diff := y.At(k, 0) - target[k]
		loss += diff * diff
		dy.Set(k, 0, 2*diff/float64(outs))
	}
	loss /= float64(outs)

	hLast := caches[len(caches)-1].h
	g.why.RankOne(g.why, 1, dy.ColView(0), hLast.ColView(0))
	g.by.Add(g.by, dy)

	dh := mat.NewDense(h, 1, nil)
	dh.Mul(n.why.T(), dy)
	dc := mat.NewDense(h, 1, nil)

	width := h + n.cfg.InputSize
	dfRaw := mat.NewDense(h, 1, nil)
	diRaw := mat.NewDense(h, 1, nil)
	dgRaw := mat.NewDense(h, 1, nil)
	doRaw := mat.NewDense(h, 1, nil)
	dz := mat.NewDense(width, 1, nil)
	tmp := mat.NewDense(width, 1, nil)

	for t := len(caches) - 1; t >= 0; t-- {
		cc := caches[t]
		for i := 0; i < h; i++ {
			tc := cc.tc.At(i, 0)
			dc.Set(i, 0, dc.At(i, 0)+dh.At(i, 0)*cc.o.At(i, 0)*(1-tc*tc))
		}
		for i := 0; i < h; i++ {
			fv := cc.f.At(i, 0)
			iv := cc.i.At(i, 0)
			gv := cc.g.At(i, 0)
			ov := cc.o.At(i, 0)
			dcv := dc.At(i, 0)
			dfRaw.Set(i, 0, dcv*cc.cPrev.At(i, 0)*fv*(1-fv))
			diRaw.Set(i, 0, dcv*gv*iv*(1-iv))
			dgRaw.Set(i, 0, dcv*iv*(1-gv*gv))
			doRaw.Set(i, 0, dh.At(i, 0)*cc.tc.At(i, 0)*ov*(1-ov))
		}

		g.wf.RankOne(g.wf, 1, dfRaw.ColView(0), cc.z.ColView(0))
		g.wi.RankOne(g.wi, 1, diRaw.ColView(0), cc.z.ColView(0))
		g.wg.RankOne(g.wg, 1, dgRaw.ColView(0), cc.z.ColView(0))
		g.wo.RankOne(g.wo, 1, doRaw.ColView(0), cc.z.ColView(0))
		g.bf.Add(g.bf, dfRaw)
		g.bi.Add(g.bi, diRaw)
		g.bg.Add(g.bg, dgRaw)
		g.bo.Add(g.bo, doRaw)

		dz.Zero()
		tmp.Mul(n.wf.T(), dfRaw)
		dz.Add(dz, tmp)
		tmp.Mul(n.wi.T(), diRaw)
		dz.Add(dz, tmp)
		tmp.Mul(n.wg.T(), dgRaw)
		dz.Add(dz, tmp)
		tmp.Mul(n.wo.T(), doRaw)
		dz.Add(dz, tmp)

		for i := 0; i < h; i++ {
			dh.Set(i, 0, dz.At(i, 0))
			dc.Set(i, 0, dc.At(i, 0)*cc.f.At(i, 0))
		}
	}
	return loss
}

// grads mirrors the parameter tensors.
type grads struct {
	wf, wi, wg, wo *mat.Dense
	bf, bi, bg, bo *mat.Dense
	why, by        *mat.Dense
}

func newGrads(cfg Config) *grads {
	h, m := cfg.HiddenSize, cfg.HiddenSize+cfg.InputSize
	return &grads{
		wf: mat.NewDense(h, m, nil), wi: mat.NewDense(h, m, nil),
		wg: mat.NewDense(h, m, nil), wo: mat.NewDense(h, m, nil),
		bf: mat.NewDense(h, 1, nil), bi: mat.NewDense(h, 1, nil),
		bg: mat.NewDense(h, 1, nil), bo: mat.NewDense(h, 1, nil),
		why: mat.NewDense(cfg.Outputs, h, nil), by: mat.NewDense(cfg.Outputs, 1, nil),
	}
}

func (g *grads) tensors() []*mat.Dense {
	return []*mat.Dense{g.wf, g.wi, g.wg, g.wo, g.bf, g.bi, g.bg, g.bo, g.why, g.by}
}

// tensors lists every parameter in a fixed order shared with grads and the
// serialized weight layout.
func (n *Network) tensors() []*mat.Dense {
	return []*mat.Dense{n.wf, n.wi, n.wg, n.wo, n.bf, n.bi, n.bg, n.bo, n.why, n.by}
}

func cloneTensors(ts []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(ts))
	for i, t := range ts {
		out[i] = mat.DenseCopyOf(t)
	}
	return out
}

func restoreTensors(dst, src []*mat.Dense) {
	for i := range dst {
		dst[i].Copy(src[i])
	}
}

// clipGrads rescales all gradients when their global norm exceeds limit.
func clipGrads(ts []*mat.Dense, limit float64) {
	sumsq := 0.0
	for _, t := range ts {
		data := t.RawMatrix().Data
		for _, v := range data {
			sumsq += v * v
		}
	}
	norm := math.Sqrt(sumsq)
	if norm <= limit || norm == 0 {
		return
	}
	scale := limit / norm
	for _, t := range ts {
		t.Scale(scale, t)
	}
}

// adam is the optimizer state: first and second moments per tensor.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  []*mat.Dense
}

func newAdam(lr float64, params []*mat.Dense) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	for _, p := range params {
		r, c := p.Dims()
		a.m = append(a.m, mat.NewDense(r, c, nil))
		a.v = append(a.v, mat.NewDense(r, c, nil))
	}
	return a
}

func (a *adam) step(params, grads []*mat.Dense) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range params {
		pd := p.RawMatrix().Data
		gd := grads[i].RawMatrix().Data
		md := a.m[i].RawMatrix().Data
		vd := a.v[i].RawMatrix().Data
		for j := range pd {
			md[j] = a.beta1*md[j] + (1-a.beta1)*gd[j]
			vd[j] = a.beta2*vd[j] + (1-a.beta2)*gd[j]*gd[j]
			mhat := md[j] / c1
			vhat := vd[j] / c2
			pd[j] -= a.lr * mhat / (math.Sqrt(vhat) + a.eps)
		}
	}
}
