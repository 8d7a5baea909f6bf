package synth

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedFrame() *Frame {
	return NewFrame().
		AddNumeric("score", []float64{10, 20, 30, 40, 50}).
		AddCategorical("plan", []string{"BASIC", "PRO", "BASIC", "TEAM", "PRO"})
}

func TestFitRejectsEmptySeed(t *testing.T) {
	s := NewGaussianCopula(rand.New(rand.NewSource(1)), zap.NewNop())

	_, err := s.Fit(context.Background(), NewFrame())
	assert.ErrorIs(t, err, ErrDegenerateSeed)

	_, err = s.Fit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDegenerateSeed)
}

func TestFitRejectsConstantColumns(t *testing.T) {
	s := NewGaussianCopula(rand.New(rand.NewSource(1)), zap.NewNop())

	constNumeric := NewFrame().
		AddNumeric("score", []float64{5, 5, 5}).
		AddCategorical("plan", []string{"BASIC", "PRO", "TEAM"})
	_, err := s.Fit(context.Background(), constNumeric)
	assert.ErrorIs(t, err, ErrDegenerateSeed)

	constCategorical := NewFrame().
		AddNumeric("score", []float64{1, 2, 3}).
		AddCategorical("plan", []string{"BASIC", "BASIC", "BASIC"})
	_, err = s.Fit(context.Background(), constCategorical)
	assert.ErrorIs(t, err, ErrDegenerateSeed)
}

func TestSampleRowCountAndColumns(t *testing.T) {
	s := NewGaussianCopula(rand.New(rand.NewSource(2)), zap.NewNop())

	model, err := s.Fit(context.Background(), seedFrame())
	require.NoError(t, err)

	out, err := s.Sample(context.Background(), model, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, out.Len())
	assert.Equal(t, []string{"score", "plan"}, out.Columns())
	assert.Len(t, out.Numeric("score"), 1000)
	assert.Len(t, out.Categorical("plan"), 1000)
}

func TestSampleStaysInCategoricalVocabulary(t *testing.T) {
	s := NewGaussianCopula(rand.New(rand.NewSource(3)), zap.NewNop())

	model, err := s.Fit(context.Background(), seedFrame())
	require.NoError(t, err)

	out, err := s.Sample(context.Background(), model, 500)
	require.NoError(t, err)

	vocab := map[string]bool{"BASIC": true, "PRO": true, "TEAM": true}
	for _, v := range out.Categorical("plan") {
		assert.True(t, vocab[v], "out-of-vocabulary value %q", v)
	}
}

func TestSampleNumericStaysNearSeedRange(t *testing.T) {
	s := NewGaussianCopula(rand.New(rand.NewSource(4)), zap.NewNop())

	model, err := s.Fit(context.Background(), seedFrame())
	require.NoError(t, err)

	out, err := s.Sample(context.Background(), model, 2000)
	require.NoError(t, err)

	// Jitter is 0.15 of the seed stddev (~14.1), so samples should stay
	// well inside a widened seed range.
	for _, v := range out.Numeric("score") {
		assert.Greater(t, v, -5.0)
		assert.Less(t, v, 65.0)
	}
}

func TestSampleRejectsForeignModel(t *testing.T) {
	s := NewGaussianCopula(rand.New(rand.NewSource(5)), zap.NewNop())

	_, err := s.Sample(context.Background(), nil, 10)
	assert.Error(t, err)
}

func TestFrameRejectsMismatchedColumns(t *testing.T) {
	f := NewFrame().
		AddNumeric("a", []float64{1, 2, 3}).
		AddNumeric("b", []float64{1, 2})
	assert.Error(t, f.Err())

	dup := NewFrame().
		AddNumeric("a", []float64{1}).
		AddCategorical("a", []string{"x"})
	assert.Error(t, dup.Err())
}
