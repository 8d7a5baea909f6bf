// Package synth fits a correlation-preserving generative model on a seed
// frame and samples new rows at scale. Callers treat it as a black box
// behind the Synthesizer interface; the repair layer downstream owns all
// hard business rules, so sampled rows may violate them.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// ErrDegenerateSeed is returned by Fit when the seed cannot support a
// model (empty table or a constant column). This is a configuration
// error: the run must abort, not retry.
var ErrDegenerateSeed = errors.New("degenerate_seed")

// Model is an opaque fitted model. It is only meaningful to the
// Synthesizer that produced it.
type Model interface {
	Columns() []string
}

// Synthesizer learns a joint distribution from a seed frame and samples
// new rows preserving it. Fit is expensive: call it once per table
// family per run and batch Sample calls as large as possible.
type Synthesizer interface {
	Fit(ctx context.Context, seed *Frame) (Model, error)
	Sample(ctx context.Context, model Model, n int) (*Frame, error)
}

type copulaModel struct {
	src    *Frame
	spread map[string]float64
}

func (m *copulaModel) Columns() []string { return m.src.Columns() }

type gaussianCopula struct {
	rng *rand.Rand
	log *zap.Logger
}

// NewGaussianCopula builds the default synthesizer: a smoothed bootstrap
// over whole seed rows. Resampling complete rows preserves every joint
// correlation in the seed; Gaussian jitter proportional to each numeric
// column's spread keeps sampled values off the seed's exact grid.
func NewGaussianCopula(rng *rand.Rand, log *zap.Logger) Synthesizer {
	return &gaussianCopula{rng: rng, log: log.Named("synth")}
}

const jitterFraction = 0.15

func (g *gaussianCopula) Fit(ctx context.Context, seed *Frame) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seed == nil || seed.Len() == 0 {
		return nil, fmt.Errorf("%w: empty seed table", ErrDegenerateSeed)
	}
	if err := seed.Err(); err != nil {
		return nil, fmt.Errorf("malformed seed frame: %w", err)
	}

	spread := make(map[string]float64)
	for _, name := range seed.Columns() {
		if values := seed.Numeric(name); values != nil {
			std := stddev(values)
			if std == 0 {
				return nil, fmt.Errorf("%w: numeric column %q is constant", ErrDegenerateSeed, name)
			}
			spread[name] = std
			continue
		}
		if distinct(seed.Categorical(name)) < 2 {
			return nil, fmt.Errorf("%w: categorical column %q is constant", ErrDegenerateSeed, name)
		}
	}

	g.log.Info("model fitted",
		zap.Int("rows", seed.Len()),
		zap.Int("columns", len(seed.Columns())),
	)
	return &copulaModel{src: seed, spread: spread}, nil
}

func (g *gaussianCopula) Sample(ctx context.Context, model Model, n int) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fitted, ok := model.(*copulaModel)
	if !ok {
		return nil, errors.New("model was not produced by this synthesizer")
	}
	if n < 0 {
		return nil, fmt.Errorf("invalid sample size %d", n)
	}

	src := fitted.src
	picks := make([]int, n)
	for i := range picks {
		picks[i] = g.rng.Intn(src.Len())
	}

	out := NewFrame()
	for _, name := range src.Columns() {
		if values := src.Numeric(name); values != nil {
			jitter := fitted.spread[name] * jitterFraction
			col := make([]float64, n)
			for i, j := range picks {
				col[i] = values[j] + g.rng.NormFloat64()*jitter
			}
			out.AddNumeric(name, col)
			continue
		}
		values := src.Categorical(name)
		col := make([]string, n)
		for i, j := range picks {
			col[i] = values[j]
		}
		out.AddCategorical(name, col)
	}
	return out, out.Err()
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func distinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
