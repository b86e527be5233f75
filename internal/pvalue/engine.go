// Package pvalue turns observed per-gene statistics and their permutation
// nulls into empirical p-values, and corrects p-values for multiple testing.
package pvalue

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-perm/internal/calc"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/permutation"
)

// DefaultEpsilon is the tolerance applied at every observed-versus-null
// comparison so that values equal up to rounding count as ties.
const DefaultEpsilon = 0.0001

// Config holds the significance test settings.
type Config struct {
	// Permutations is the number of null trials per gene and test.
	Permutations int
	// Epsilon is the tie tolerance for observed-versus-null comparisons.
	Epsilon float64
	// DelThreshold is the minimum deleterious count worth permuting.
	DelThreshold int
	// MinRecurrent and MinFraction decide which residues count as recurrent.
	MinRecurrent int
	MinFraction  float64
	// ProbInactive is the probability that a frameshift is inactivating.
	ProbInactive float64
}

// DefaultConfig returns the default test settings.
func DefaultConfig() Config {
	return Config{
		Permutations: 10000,
		Epsilon:      DefaultEpsilon,
		DelThreshold: 5,
		MinRecurrent: 2,
		MinFraction:  0.02,
		ProbInactive: 1.0,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Permutations < 1 {
		return fmt.Errorf("permutations must be at least 1, got %d", c.Permutations)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must not be negative, got %g", c.Epsilon)
	}
	if c.ProbInactive < 0 || c.ProbInactive > 1 {
		return fmt.Errorf("frameshift inactivation probability must be in [0, 1], got %g", c.ProbInactive)
	}
	if c.MinFraction < 0 || c.MinFraction > 1 {
		return fmt.Errorf("minimum recurrent fraction must be in [0, 1], got %g", c.MinFraction)
	}
	return nil
}

// Index is the context position index of a gene.
type Index interface {
	permutation.PositionIndex
	mutation.ContextLookup
}

// Gene is the per-gene input of every test.
type Gene struct {
	Name        string
	SNVs        []mutation.Record
	Frameshifts int
	Index       Index
	Annotator   mutation.Annotator
}

// DeleteriousResult is the outcome of the deleterious mutation test. PValue
// is invalid when the test was skipped.
type DeleteriousResult struct {
	Gene        string
	Deleterious int
	PValue      null.Float
	Null        NullSummary
}

// PositionResult is the outcome of the position-based test.
type PositionResult struct {
	Gene               string
	Recurrent          int
	Entropy            float64
	DeltaEntropy       float64
	RecurrentPValue    float64
	EntropyPValue      float64
	DeltaEntropyPValue float64
	Null               NullSummary
}

// EffectResult is the outcome of the effect-based test. Only the effect
// entropy is tested; recurrence and inactivating counts are reported as observed.
type EffectResult struct {
	Gene          string
	Entropy       float64
	Recurrent     int
	Inactivating  int
	EntropyPValue float64
	Null          NullSummary
}

// Engine runs the per-gene significance tests.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates an engine with validated settings.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: zap.NewNop()}, nil
}

// SetLogger sets the logger for debug messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) input(g *Gene) (permutation.Input, error) {
	counts, subs, err := mutation.Group(g.SNVs, g.Index)
	if err != nil {
		return permutation.Input{}, err
	}
	return permutation.Input{
		Counts:        counts,
		Substitutions: subs,
		Index:         g.Index,
		Annotator:     g.Annotator,
	}, nil
}

// Deleterious tests whether the gene carries more inactivating mutations
// than expected. Frameshifts always count as observed deleterious mutations;
// in the null each trial adds a binomial draw over the frameshift count.
// Genes below the deleterious threshold are reported without a p-value and
// without touching rng.
func (e *Engine) Deleterious(g *Gene, rng *rand.Rand) (DeleteriousResult, error) {
	res := DeleteriousResult{Gene: g.Name, Deleterious: g.Frameshifts}
	if len(g.SNVs) == 0 {
		return res, nil
	}

	observed := mutation.Observed(g.SNVs, g.Annotator)
	res.Deleterious += calc.DeleteriousCount(observed)

	if res.Deleterious < e.cfg.DelThreshold {
		e.logger.Debug("skipping deleterious permutations",
			zap.String("gene", g.Name),
			zap.Int("deleterious", res.Deleterious),
			zap.Int("threshold", e.cfg.DelThreshold))
		return res, nil
	}

	in, err := e.input(g)
	if err != nil {
		return res, fmt.Errorf("deleterious test %s: %w", g.Name, err)
	}
	snvNull, err := permutation.Deleterious(in, e.cfg.Permutations, rng)
	if err != nil {
		return res, fmt.Errorf("deleterious test %s: %w", g.Name, err)
	}

	nullTotal := make([]float64, len(snvNull))
	for i, d := range snvNull {
		nullTotal[i] = float64(d)
	}
	if g.Frameshifts > 0 {
		e.addFrameshifts(nullTotal, g.Frameshifts, rng)
	}

	n := countAtLeast(nullTotal, float64(res.Deleterious), e.cfg.Epsilon)
	res.PValue = null.FloatFrom(float64(n) / float64(e.cfg.Permutations))
	res.Null = summarize(nullTotal)
	return res, nil
}

// addFrameshifts adds one Binomial(frameshifts, ProbInactive) draw to every
// null trial.
func (e *Engine) addFrameshifts(nullTotal []float64, frameshifts int, rng *rand.Rand) {
	switch {
	case e.cfg.ProbInactive <= 0:
		return
	case e.cfg.ProbInactive >= 1:
		for i := range nullTotal {
			nullTotal[i] += float64(frameshifts)
		}
		return
	}

	b := distuv.Binomial{N: float64(frameshifts), P: e.cfg.ProbInactive, Src: rng}
	for i := range nullTotal {
		nullTotal[i] += b.Rand()
	}
}

// Position tests recurrence (larger is more extreme), positional entropy
// (smaller is more extreme) and delta entropy (larger is more extreme).
func (e *Engine) Position(g *Gene, rng *rand.Rand) (PositionResult, error) {
	if len(g.SNVs) == 0 {
		return PositionResult{
			Gene:               g.Name,
			RecurrentPValue:    1.0,
			EntropyPValue:      1.0,
			DeltaEntropyPValue: 1.0,
		}, nil
	}

	in, err := e.input(g)
	if err != nil {
		return PositionResult{Gene: g.Name}, fmt.Errorf("position test %s: %w", g.Name, err)
	}
	nulls, err := permutation.Position(in, e.cfg.Permutations, rng, e.cfg.MinFraction, e.cfg.MinRecurrent)
	if err != nil {
		return PositionResult{Gene: g.Name}, fmt.Errorf("position test %s: %w", g.Name, err)
	}

	obs := calc.PositionInfo(mutation.Observed(g.SNVs, g.Annotator), e.cfg.MinFraction, e.cfg.MinRecurrent)

	recur := make([]float64, len(nulls))
	ent := make([]float64, len(nulls))
	delta := make([]float64, len(nulls))
	for i, s := range nulls {
		recur[i] = float64(s.Recurrent)
		ent[i] = s.Entropy
		delta[i] = s.DeltaEntropy
	}

	perms := float64(e.cfg.Permutations)
	return PositionResult{
		Gene:               g.Name,
		Recurrent:          obs.Recurrent,
		Entropy:            obs.Entropy,
		DeltaEntropy:       obs.DeltaEntropy,
		RecurrentPValue:    float64(countAtLeast(recur, float64(obs.Recurrent), e.cfg.Epsilon)) / perms,
		EntropyPValue:      float64(countAtMost(ent, obs.Entropy, e.cfg.Epsilon)) / perms,
		DeltaEntropyPValue: float64(countAtLeast(delta, obs.DeltaEntropy, e.cfg.Epsilon)) / perms,
		Null:               summarize(recur),
	}, nil
}

// Effect tests whether the effect entropy is lower than expected.
func (e *Engine) Effect(g *Gene, rng *rand.Rand) (EffectResult, error) {
	if len(g.SNVs) == 0 {
		return EffectResult{Gene: g.Name, EntropyPValue: 1.0}, nil
	}

	in, err := e.input(g)
	if err != nil {
		return EffectResult{Gene: g.Name}, fmt.Errorf("effect test %s: %w", g.Name, err)
	}
	nulls, err := permutation.Effect(in, e.cfg.Permutations, rng, e.cfg.MinFraction, e.cfg.MinRecurrent)
	if err != nil {
		return EffectResult{Gene: g.Name}, fmt.Errorf("effect test %s: %w", g.Name, err)
	}

	obs := calc.EffectInfo(mutation.Observed(g.SNVs, g.Annotator), e.cfg.MinFraction, e.cfg.MinRecurrent)

	ent := make([]float64, len(nulls))
	for i, s := range nulls {
		ent[i] = s.Entropy
	}

	return EffectResult{
		Gene:          g.Name,
		Entropy:       obs.Entropy,
		Recurrent:     obs.Recurrent,
		Inactivating:  obs.Inactivating,
		EntropyPValue: float64(countAtMost(ent, obs.Entropy, e.cfg.Epsilon)) / float64(e.cfg.Permutations),
		Null:          summarize(ent),
	}, nil
}

// countAtLeast counts null values at least as large as observed.
func countAtLeast(nulls []float64, observed, eps float64) int {
	n := 0
	for _, v := range nulls {
		if v+eps >= observed {
			n++
		}
	}
	return n
}

// countAtMost counts null values at most as large as observed.
func countAtMost(nulls []float64, observed, eps float64) int {
	n := 0
	for _, v := range nulls {
		if v-eps <= observed {
			n++
		}
	}
	return n
}
