package store

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-perm/internal/runner"
)

// GeneRow is a stored gene result. Values of tests that did not run are
// invalid.
type GeneRow struct {
	RunID         string
	Gene          string
	SNVs          int64
	Frameshifts   int64
	Deleterious   null.Int
	DeleteriousP  null.Float
	DeleteriousQ  null.Float
	Recurrent     null.Int
	RecurrentP    null.Float
	RecurrentQ    null.Float
	EntropyP      null.Float
	EntropyQ      null.Float
	EffectEntropy null.Float
	CombinedP     null.Float

	DeleteriousNullMean   null.Float
	RecurrentNullMean     null.Float
	RecurrentNullP95      null.Float
	EffectEntropyNullMean null.Float

	Error null.String
}

// WriteGeneResults batch-inserts the gene results of a run using the Appender API.
func (s *Store) WriteGeneResults(runID string, results []runner.GeneResult) error {
	if len(results) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "gene_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i := range results {
		r := &results[i]
		if err := appender.AppendRow(geneRow(runID, r)...); err != nil {
			return fmt.Errorf("append gene result %s: %w", r.Gene, err)
		}
	}

	return appender.Flush()
}

// geneRow lays out a result in gene_results column order. Failed genes keep
// only their counts and the error message.
func geneRow(runID string, r *runner.GeneResult) []driver.Value {
	row := []driver.Value{runID, r.Gene, int64(r.SNVs), int64(r.Frameshifts)}
	if r.Err != nil {
		for i := 0; i < 22; i++ {
			row = append(row, nil)
		}
		return append(row, r.Err.Error())
	}

	return append(row,
		int64(r.Deleterious.Deleterious),
		nullable(r.Deleterious.PValue),
		nullable(r.DeleteriousQ),
		int64(r.Position.Recurrent),
		r.Position.RecurrentPValue,
		nullable(r.RecurrentQ),
		r.Position.Entropy,
		r.Position.EntropyPValue,
		nullable(r.EntropyQ),
		r.Position.DeltaEntropy,
		r.Position.DeltaEntropyPValue,
		nullable(r.DeltaEntropyQ),
		r.Effect.Entropy,
		int64(r.Effect.Recurrent),
		int64(r.Effect.Inactivating),
		r.Effect.EntropyPValue,
		nullable(r.EffectEntropyQ),
		nullable(r.CombinedP),
		nullable(deleteriousNullMean(r)),
		r.Position.Null.Mean,
		r.Position.Null.Percentile95,
		r.Effect.Null.Mean,
		nil,
	)
}

// deleteriousNullMean is the null mean of the deleterious test, invalid when
// the test was skipped.
func deleteriousNullMean(r *runner.GeneResult) null.Float {
	if !r.Deleterious.PValue.Valid {
		return null.Float{}
	}
	return null.FloatFrom(r.Deleterious.Null.Mean)
}

func nullable(v null.Float) driver.Value {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

// ClearResults removes all stored runs and gene results.
func (s *Store) ClearResults() error {
	if _, err := s.db.Exec("DELETE FROM gene_results"); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM runs")
	return err
}

// LookupGene returns the stored results of a gene across all runs.
func (s *Store) LookupGene(gene string) ([]GeneRow, error) {
	rows, err := s.db.Query(`SELECT
		run_id, gene, snvs, frameshifts,
		deleterious, deleterious_p, deleterious_q,
		recurrent, recurrent_p, recurrent_q,
		entropy_p, entropy_q, effect_entropy, combined_p,
		deleterious_null_mean, recurrent_null_mean, recurrent_null_p95, effect_entropy_null_mean,
		error
		FROM gene_results
		WHERE gene=?
		ORDER BY run_id`, gene)
	if err != nil {
		return nil, fmt.Errorf("query gene: %w", err)
	}
	defer rows.Close()

	var out []GeneRow
	for rows.Next() {
		var g GeneRow
		if err := rows.Scan(
			&g.RunID, &g.Gene, &g.SNVs, &g.Frameshifts,
			&g.Deleterious, &g.DeleteriousP, &g.DeleteriousQ,
			&g.Recurrent, &g.RecurrentP, &g.RecurrentQ,
			&g.EntropyP, &g.EntropyQ, &g.EffectEntropy, &g.CombinedP,
			&g.DeleteriousNullMean, &g.RecurrentNullMean, &g.RecurrentNullP95, &g.EffectEntropyNullMean,
			&g.Error,
		); err != nil {
			return nil, fmt.Errorf("scan gene result: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gene results: %w", err)
	}
	return out, nil
}
