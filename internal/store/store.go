// Package store persists permutation test results in DuckDB so that runs
// can be queried and compared after the fact.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for run and gene results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		started_at TIMESTAMP,
		seed BIGINT,
		permutations BIGINT,
		context_mode BIGINT,
		prob_inactive DOUBLE,
		mutations_path VARCHAR,
		mutations_size BIGINT,
		mutations_mtime TIMESTAMP,
		fasta_path VARCHAR,
		fasta_size BIGINT,
		fasta_mtime TIMESTAMP
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS gene_results (
		run_id VARCHAR,
		gene VARCHAR,
		snvs BIGINT,
		frameshifts BIGINT,
		deleterious BIGINT,
		deleterious_p DOUBLE,
		deleterious_q DOUBLE,
		recurrent BIGINT,
		recurrent_p DOUBLE,
		recurrent_q DOUBLE,
		entropy DOUBLE,
		entropy_p DOUBLE,
		entropy_q DOUBLE,
		delta_entropy DOUBLE,
		delta_entropy_p DOUBLE,
		delta_entropy_q DOUBLE,
		effect_entropy DOUBLE,
		effect_recurrent BIGINT,
		effect_inactivating BIGINT,
		effect_entropy_p DOUBLE,
		effect_entropy_q DOUBLE,
		combined_p DOUBLE,
		deleterious_null_mean DOUBLE,
		recurrent_null_mean DOUBLE,
		recurrent_null_p95 DOUBLE,
		effect_entropy_null_mean DOUBLE,
		error VARCHAR,
		PRIMARY KEY (run_id, gene)
	)`)
	return err
}
