// Package runner drives the per-gene permutation tests over a cohort and
// applies multiple-testing correction to the collected p-values.
package runner

import (
	"hash/fnv"
	"math"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-perm/internal/calc"
	"github.com/inodb/vibe-perm/internal/gene"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/permutation"
	"github.com/inodb/vibe-perm/internal/pvalue"
	"github.com/inodb/vibe-perm/internal/seqcontext"
)

// Config holds the cohort-level settings.
type Config struct {
	Tests   pvalue.Config
	Context seqcontext.Mode
	// Seed makes the run reproducible; nil draws a random base seed.
	Seed *uint64
	// ProbInactive overrides the frameshift inactivation probability. When
	// invalid it is estimated from the cohort.
	ProbInactive null.Float
}

// SequenceSource provides gene coding sequences.
type SequenceSource interface {
	Sequence(name string) *gene.Sequence
}

// GeneResult collects every test outcome for one gene.
type GeneResult struct {
	Gene        string
	SNVs        int
	Frameshifts int

	Deleterious pvalue.DeleteriousResult
	Position    pvalue.PositionResult
	Effect      pvalue.EffectResult

	DeleteriousQ   null.Float
	RecurrentQ     null.Float
	EntropyQ       null.Float
	DeltaEntropyQ  null.Float
	EffectEntropyQ null.Float
	CombinedP      null.Float

	Err error
}

// tested reports whether the position and effect p-values were simulated.
func (g *GeneResult) tested() bool {
	return g.Err == nil && g.SNVs > 0
}

// Summary describes a finished run.
type Summary struct {
	Seed         uint64
	ProbInactive float64
	Genes        int
	Skipped      []string
	Failed       int
}

// Runner runs the tests gene by gene.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a runner.
func New(cfg Config) *Runner {
	return &Runner{cfg: cfg, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress and warning messages.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Run tests every gene that has a coding sequence. A failing gene is
// recorded with its error and does not stop the others.
func (r *Runner) Run(records []mutation.Record, seqs SequenceSource) ([]GeneResult, Summary, error) {
	genes := mutation.ByGene(records)
	names := make([]string, 0, len(genes))
	for name := range genes {
		names = append(names, name)
	}
	sort.Strings(names)

	var summary Summary
	available := make([]string, 0, len(names))
	for _, name := range names {
		if seqs.Sequence(name) == nil {
			r.logger.Warn("no coding sequence for gene, skipping", zap.String("gene", name))
			summary.Skipped = append(summary.Skipped, name)
			continue
		}
		available = append(available, name)
	}

	summary.ProbInactive = r.cfg.ProbInactive.Float64
	if !r.cfg.ProbInactive.Valid {
		summary.ProbInactive = EstimateProbInactive(genes, seqs)
	}

	tests := r.cfg.Tests
	tests.ProbInactive = summary.ProbInactive
	engine, err := pvalue.NewEngine(tests)
	if err != nil {
		return nil, summary, err
	}
	engine.SetLogger(r.logger)

	if r.cfg.Seed != nil {
		summary.Seed = *r.cfg.Seed
	} else {
		summary.Seed = permutation.RandomSeed()
	}
	r.logger.Info("starting permutation tests",
		zap.Int("genes", len(available)),
		zap.Int("permutations", tests.Permutations),
		zap.Uint64("seed", summary.Seed),
		zap.Float64("prob_inactive", summary.ProbInactive))

	results := make([]GeneResult, 0, len(available))
	for _, name := range available {
		res := r.runGene(engine, genes[name], seqs.Sequence(name), summary.Seed)
		if res.Err != nil {
			summary.Failed++
			r.logger.Warn("gene failed", zap.String("gene", name), zap.Error(res.Err))
		}
		results = append(results, res)
	}
	summary.Genes = len(results)

	Adjust(results, tests.Permutations)
	return results, summary, nil
}

func (r *Runner) runGene(engine *pvalue.Engine, m *mutation.Gene, seq *gene.Sequence, baseSeed uint64) GeneResult {
	g := &pvalue.Gene{
		Name:        m.Name,
		SNVs:        m.SNVs,
		Frameshifts: m.Frameshifts,
		Index:       seqcontext.New(seq.CDS, r.cfg.Context),
		Annotator:   seq,
	}
	res := GeneResult{Gene: m.Name, SNVs: len(m.SNVs), Frameshifts: m.Frameshifts}

	var err error
	if res.Deleterious, err = engine.Deleterious(g, permutation.NewRand(GeneSeed(baseSeed, m.Name, "deleterious"))); err != nil {
		res.Err = err
		return res
	}
	if res.Position, err = engine.Position(g, permutation.NewRand(GeneSeed(baseSeed, m.Name, "position"))); err != nil {
		res.Err = err
		return res
	}
	if res.Effect, err = engine.Effect(g, permutation.NewRand(GeneSeed(baseSeed, m.Name, "effect"))); err != nil {
		res.Err = err
		return res
	}

	r.logger.Debug("gene tested",
		zap.String("gene", m.Name),
		zap.Int("snvs", res.SNVs),
		zap.Int("frameshifts", res.Frameshifts),
		zap.Int("recurrent", res.Position.Recurrent),
		zap.Float64("recurrent_p", res.Position.RecurrentPValue),
		zap.Float64("recurrent_null_mean", res.Position.Null.Mean),
		zap.Float64("recurrent_null_p95", res.Position.Null.Percentile95),
		zap.Float64("effect_entropy_null_mean", res.Effect.Null.Mean))
	return res
}

// GeneSeed derives the generator seed of one test of one gene, independent
// of the order in which genes are processed.
func GeneSeed(base uint64, gene, test string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(gene))
	h.Write([]byte{0})
	h.Write([]byte(test))
	return base ^ h.Sum64()
}

// EstimateProbInactive returns the cohort-wide fraction of non-silent coding
// mutations that are inactivating, counting frameshifts as inactivating.
func EstimateProbInactive(genes map[string]*mutation.Gene, seqs SequenceSource) float64 {
	var inactivating, nonSilent int
	for name, g := range genes {
		seq := seqs.Sequence(name)
		if seq == nil {
			continue
		}
		inactivating += g.Frameshifts
		nonSilent += g.Frameshifts

		c := mutation.Observed(g.SNVs, seq)
		for i := range c.CodonPos {
			switch {
			case calc.IsInactivating(c.CodonPos[i], c.Ref[i], c.Somatic[i]):
				inactivating++
				nonSilent++
			case calc.IsMissense(c.CodonPos[i], c.Ref[i], c.Somatic[i]):
				nonSilent++
			}
		}
	}

	if nonSilent == 0 {
		return 0
	}
	return float64(inactivating) / float64(nonSilent)
}

// Adjust fills in the Benjamini-Hochberg q-values of every p-value column,
// over the genes where that test ran, and the Fisher combination of the
// deleterious and entropy p-values.
func Adjust(results []GeneResult, permutations int) {
	n := len(results)
	del := make([]null.Float, n)
	recur := make([]null.Float, n)
	ent := make([]null.Float, n)
	delta := make([]null.Float, n)
	effect := make([]null.Float, n)

	for i := range results {
		res := &results[i]
		if res.Err != nil {
			continue
		}
		del[i] = res.Deleterious.PValue
		if res.tested() {
			recur[i] = null.FloatFrom(res.Position.RecurrentPValue)
			ent[i] = null.FloatFrom(res.Position.EntropyPValue)
			delta[i] = null.FloatFrom(res.Position.DeltaEntropyPValue)
			effect[i] = null.FloatFrom(res.Effect.EntropyPValue)
		}
	}

	del = pvalue.AdjustNullable(del)
	recur = pvalue.AdjustNullable(recur)
	ent = pvalue.AdjustNullable(ent)
	delta = pvalue.AdjustNullable(delta)
	effect = pvalue.AdjustNullable(effect)

	floor := 1.0
	if permutations > 0 {
		floor = 1 / float64(permutations)
	}

	for i := range results {
		res := &results[i]
		res.DeleteriousQ = del[i]
		res.RecurrentQ = recur[i]
		res.EntropyQ = ent[i]
		res.DeltaEntropyQ = delta[i]
		res.EffectEntropyQ = effect[i]

		if !res.tested() || !res.Deleterious.PValue.Valid {
			continue
		}
		ps := []float64{
			math.Max(res.Deleterious.PValue.Float64, floor),
			math.Max(res.Position.EntropyPValue, floor),
		}
		if combined, err := pvalue.FishersMethod(ps); err == nil {
			res.CombinedP = null.FloatFrom(combined)
		}
	}
}
