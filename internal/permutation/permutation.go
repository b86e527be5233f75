// Package permutation generates null distributions of per-gene mutation
// statistics by redistributing the observed mutations over coding positions
// that share their nucleotide context.
package permutation

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/inodb/vibe-perm/internal/calc"
	"github.com/inodb/vibe-perm/internal/mutation"
)

// pcgStream is the fixed second PCG word; the seed alone selects the stream.
const pcgStream = 0x9e3779b97f4a7c15

// NewRand returns a dedicated generator for one invocation.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, pcgStream))
}

// RandomSeed draws a fresh seed for callers that did not configure one.
func RandomSeed() uint64 {
	return rand.Uint64()
}

// PositionIndex exposes the coding positions of a gene per context.
type PositionIndex interface {
	PositionsFor(context string) []int
	SamplePositions(context string, count int, rng *rand.Rand) ([]int, error)
}

// Input is the per-gene data the generator redistributes.
type Input struct {
	Counts        mutation.ContextCounts
	Substitutions mutation.ContextSubstitutions
	Index         PositionIndex
	Annotator     mutation.Annotator
}

// ErrNoMutations is returned when no context has a positive count.
var ErrNoMutations = errors.New("no mutations to permute")

// flatten checks the preconditions and returns the contexts in draw order
// together with the somatic bases flattened in the same order.
func (in *Input) flatten(numPermutations int) ([]string, []byte, error) {
	if numPermutations < 1 {
		return nil, nil, fmt.Errorf("number of permutations must be at least 1, got %d", numPermutations)
	}

	contexts := in.Counts.Contexts()
	if len(contexts) == 0 {
		return nil, nil, ErrNoMutations
	}

	bases := make([]byte, 0, in.Counts.Total())
	for _, ctx := range contexts {
		subs := in.Substitutions[ctx]
		if len(subs) != in.Counts[ctx] {
			return nil, nil, fmt.Errorf("context %q: %d substitutions for %d mutations", ctx, len(subs), in.Counts[ctx])
		}
		if len(in.Index.PositionsFor(ctx)) == 0 {
			return nil, nil, fmt.Errorf("context %q has no coding positions in the gene", ctx)
		}
		bases = append(bases, subs...)
	}

	return contexts, bases, nil
}

// simulate runs numPermutations trials and hands each trial's annotated
// mutations to fn in trial order. The AAChanges value is reused between
// trials.
func simulate(in Input, numPermutations int, rng *rand.Rand, fn func(*calc.AAChanges)) error {
	contexts, bases, err := in.flatten(numPermutations)
	if err != nil {
		return err
	}

	changes := calc.NewAAChanges(len(bases))
	for range numPermutations {
		changes.Reset()
		i := 0
		for _, ctx := range contexts {
			positions, err := in.Index.SamplePositions(ctx, in.Counts[ctx], rng)
			if err != nil {
				return fmt.Errorf("sample positions: %w", err)
			}
			for _, pos := range positions {
				changes.AddInfo(in.Annotator.Annotate(pos, bases[i]))
				i++
			}
		}
		fn(changes)
	}

	return nil
}

// Deleterious returns the null distribution of inactivating SNV counts.
func Deleterious(in Input, numPermutations int, rng *rand.Rand) ([]int, error) {
	out := make([]int, 0, numPermutations)
	err := simulate(in, numPermutations, rng, func(c *calc.AAChanges) {
		out = append(out, calc.DeleteriousCount(c))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Position returns the null distribution of recurrence, positional entropy
// and delta entropy.
func Position(in Input, numPermutations int, rng *rand.Rand, minFrac float64, minRecur int) ([]calc.PositionStats, error) {
	out := make([]calc.PositionStats, 0, numPermutations)
	err := simulate(in, numPermutations, rng, func(c *calc.AAChanges) {
		out = append(out, calc.PositionInfo(c, minFrac, minRecur))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Effect returns the null distribution of effect entropy, recurrence and
// inactivating counts.
func Effect(in Input, numPermutations int, rng *rand.Rand, minFrac float64, minRecur int) ([]calc.EffectStats, error) {
	out := make([]calc.EffectStats, 0, numPermutations)
	err := simulate(in, numPermutations, rng, func(c *calc.AAChanges) {
		out = append(out, calc.EffectInfo(c, minFrac, minRecur))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
