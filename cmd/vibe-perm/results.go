package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-perm/internal/store"
)

var resultsColumns = []string{
	"Run_ID",
	"Started",
	"Seed",
	"Permutations",
	"Context",
	"Gene",
	"SNVs",
	"Frameshifts",
	"Deleterious_P",
	"Deleterious_Q",
	"Recurrent_P",
	"Recurrent_Q",
	"Entropy_P",
	"Combined_P",
	"Recurrent_Null_Mean",
	"Recurrent_Null_P95",
	"Status",
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results <gene>",
		Short: "Show results stored by earlier runs",
		Long: `Show every stored result of a gene, one row per run, together with the run's
seed and settings. Results are stored by 'vibe-perm run --db FILE'.`,
		Example: `  vibe-perm results TP53 --db results.duckdb
  vibe-perm results --clear --db results.duckdb`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				dbPath = viper.GetString("db")
			}
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			clearAll, _ := cmd.Flags().GetBool("clear")

			s, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if clearAll {
				if err := s.ClearResults(); err != nil {
					return fmt.Errorf("clearing results: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared stored results in %s\n", dbPath)
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("gene argument required")
			}
			return showGeneResults(s, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("db", "", "DuckDB file written by 'vibe-perm run --db'")
	cmd.Flags().Bool("clear", false, "Remove all stored runs and results")

	return cmd
}

func showGeneResults(s *store.Store, gene string, w io.Writer) error {
	rows, err := s.LookupGene(gene)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no stored results for %s", gene)
	}

	if _, err := fmt.Fprintln(w, strings.Join(resultsColumns, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		info, err := s.LookupRun(row.RunID)
		if err != nil {
			return err
		}
		started, seed, perms, mode := "-", "-", "-", "-"
		if info != nil {
			started = info.StartedAt.UTC().Format("2006-01-02T15:04:05Z")
			seed = strconv.FormatUint(info.Seed, 10)
			perms = strconv.Itoa(info.Permutations)
			mode = strconv.Itoa(info.ContextMode)
		}

		status := "ok"
		if row.Error.Valid {
			status = "error: " + row.Error.String
		}

		values := []string{
			row.RunID, started, seed, perms, mode,
			row.Gene,
			strconv.FormatInt(row.SNVs, 10),
			strconv.FormatInt(row.Frameshifts, 10),
			formatNullFloat(row.DeleteriousP),
			formatNullFloat(row.DeleteriousQ),
			formatNullFloat(row.RecurrentP),
			formatNullFloat(row.RecurrentQ),
			formatNullFloat(row.EntropyP),
			formatNullFloat(row.CombinedP),
			formatNullFloat(row.RecurrentNullMean),
			formatNullFloat(row.RecurrentNullP95),
			status,
		}
		if _, err := fmt.Fprintln(w, strings.Join(values, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func formatNullFloat(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.Float64, 'g', 6, 64)
}
