package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-perm/internal/gene"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/output"
	"github.com/inodb/vibe-perm/internal/pvalue"
	"github.com/inodb/vibe-perm/internal/runner"
	"github.com/inodb/vibe-perm/internal/seqcontext"
	"github.com/inodb/vibe-perm/internal/store"
)

// runOptions are the resolved settings of one run.
type runOptions struct {
	mutationsPath string
	fastaPath     string
	outputPath    string
	dbPath        string
	runner        runner.Config
}

func newRunCmd() *cobra.Command {
	defaults := pvalue.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run permutation tests on a mutation table",
		Long: `Run the deleterious, position and effect permutation tests for every gene in
a tab-delimited mutation table, using coding sequences from a FASTA file.`,
		Example: `  vibe-perm run --mutations muts.txt --fasta genes.fa
  vibe-perm run --mutations muts.txt --fasta genes.fa --context 3 --seed 42 -o results.txt
  vibe-perm run --mutations muts.txt.gz --fasta genes.fa --db results.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveRunOptions()
			if err != nil {
				return err
			}
			logger, err := newLogger(viper.GetBool("verbose"))
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck
			return runPermutations(opts, cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringP("mutations", "m", "", "Mutation table (tab-delimited, optionally gzipped, '-' for stdin)")
	f.StringP("fasta", "f", "", "FASTA file of gene coding sequences")
	f.StringP("output", "o", "", "Output file (default: stdout)")
	f.String("db", "", "DuckDB file to store run results in (optional)")
	f.Int("context", int(seqcontext.ModeTrinucleotide), "Sequence context: 0 none, 1 single base, 2 dinucleotide, 3 trinucleotide")
	f.IntP("permutations", "n", defaults.Permutations, "Number of permutations per gene and test")
	f.Uint64("seed", 0, "Random seed (default: random)")
	f.Int("del-threshold", defaults.DelThreshold, "Minimum deleterious count to run the deleterious test")
	f.Int("min-recurrent", defaults.MinRecurrent, "Minimum mutations at a residue to count as recurrent")
	f.Float64("min-fraction", defaults.MinFraction, "Minimum fraction of a gene's mutations at a residue to count as recurrent")
	f.Float64("prob-inactive", 0, "Probability a frameshift is inactivating (default: estimated from the cohort)")
	f.Float64("epsilon", defaults.Epsilon, "Tolerance for observed versus null comparisons")

	for key, flag := range map[string]string{
		"mutations":            "mutations",
		"fasta":                "fasta",
		"output":               "output",
		"db":                   "db",
		"context":              "context",
		"permutations":         "permutations",
		"seed":                 "seed",
		"pvalue.del_threshold": "del-threshold",
		"pvalue.min_recurrent": "min-recurrent",
		"pvalue.min_fraction":  "min-fraction",
		"pvalue.prob_inactive": "prob-inactive",
		"pvalue.epsilon":       "epsilon",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func resolveRunOptions() (runOptions, error) {
	opts := runOptions{
		mutationsPath: viper.GetString("mutations"),
		fastaPath:     viper.GetString("fasta"),
		outputPath:    viper.GetString("output"),
		dbPath:        viper.GetString("db"),
	}
	if opts.mutationsPath == "" {
		return opts, fmt.Errorf("--mutations is required")
	}
	if opts.fastaPath == "" {
		return opts, fmt.Errorf("--fasta is required")
	}

	mode, err := seqcontext.ParseMode(viper.GetInt("context"))
	if err != nil {
		return opts, err
	}

	tests := pvalue.Config{
		Permutations: viper.GetInt("permutations"),
		Epsilon:      viper.GetFloat64("pvalue.epsilon"),
		DelThreshold: viper.GetInt("pvalue.del_threshold"),
		MinRecurrent: viper.GetInt("pvalue.min_recurrent"),
		MinFraction:  viper.GetFloat64("pvalue.min_fraction"),
		ProbInactive: 1,
	}
	if err := tests.Validate(); err != nil {
		return opts, err
	}

	opts.runner = runner.Config{Tests: tests, Context: mode}
	if viper.IsSet("seed") {
		seed, err := strconv.ParseUint(viper.GetString("seed"), 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid seed %q: %w", viper.GetString("seed"), err)
		}
		opts.runner.Seed = &seed
	}
	if viper.IsSet("pvalue.prob_inactive") {
		opts.runner.ProbInactive = null.FloatFrom(viper.GetFloat64("pvalue.prob_inactive"))
	}
	return opts, nil
}

func runPermutations(opts runOptions, stdout io.Writer, logger *zap.Logger) error {
	started := time.Now()

	parser, err := mutation.NewParser(opts.mutationsPath)
	if err != nil {
		return fmt.Errorf("opening mutations: %w", err)
	}
	records, err := parser.ReadAll()
	if closeErr := parser.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing mutations: %w", closeErr)
	}
	if err != nil {
		return err
	}
	logger.Info("loaded mutations",
		zap.String("path", opts.mutationsPath),
		zap.Int("records", len(records)),
		zap.Int("skipped", parser.Skipped()))

	loader := gene.NewFASTALoader(opts.fastaPath)
	if err := loader.Load(); err != nil {
		return fmt.Errorf("loading coding sequences: %w", err)
	}
	logger.Info("loaded coding sequences",
		zap.String("path", opts.fastaPath),
		zap.Int("sequences", loader.SequenceCount()))

	r := runner.New(opts.runner)
	r.SetLogger(logger)
	results, summary, err := r.Run(records, loader)
	if err != nil {
		return err
	}
	logger.Info("permutation tests finished",
		zap.Int("genes", summary.Genes),
		zap.Int("failed", summary.Failed),
		zap.Int("without_sequence", len(summary.Skipped)),
		zap.Duration("elapsed", time.Since(started)))

	if err := writeResults(opts.outputPath, stdout, results); err != nil {
		return err
	}

	if opts.dbPath != "" {
		if err := storeResults(opts, started, summary, results); err != nil {
			return err
		}
		logger.Info("stored results", zap.String("db", opts.dbPath))
	}
	return nil
}

func writeResults(path string, stdout io.Writer, results []runner.GeneResult) error {
	out := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := output.NewResultWriter(out).WriteAll(results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

func storeResults(opts runOptions, started time.Time, summary runner.Summary, results []runner.GeneResult) error {
	s, err := store.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	run := store.Run{
		ID:           store.NewRunID(started, summary.Seed),
		StartedAt:    started,
		Seed:         summary.Seed,
		Permutations: opts.runner.Tests.Permutations,
		ContextMode:  int(opts.runner.Context),
		ProbInactive: summary.ProbInactive,
		Mutations:    fingerprint(opts.mutationsPath),
		FASTA:        fingerprint(opts.fastaPath),
	}
	if err := s.WriteRun(run); err != nil {
		return err
	}
	return s.WriteGeneResults(run.ID, results)
}

// fingerprint stats path, keeping only the path when it cannot be read (stdin).
func fingerprint(path string) store.FileFingerprint {
	fp, err := store.StatFile(path)
	if err != nil {
		return store.FileFingerprint{Path: path}
	}
	return fp
}
