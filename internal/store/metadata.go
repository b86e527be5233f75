package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for an input file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run describes one invocation of the permutation tests.
type Run struct {
	ID           string
	StartedAt    time.Time
	Seed         uint64
	Permutations int
	ContextMode  int
	ProbInactive float64
	Mutations    FileFingerprint
	FASTA        FileFingerprint
}

// NewRunID returns an identifier for a run started at t with the given seed.
func NewRunID(t time.Time, seed uint64) string {
	return fmt.Sprintf("%s-%016x", t.UTC().Format("20060102T150405"), seed)
}

// WriteRun records the run parameters and input fingerprints. The seed is
// stored bit-cast to BIGINT.
func (s *Store) WriteRun(r Run) error {
	_, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, int64(r.Seed), int64(r.Permutations), int64(r.ContextMode), r.ProbInactive,
		r.Mutations.Path, r.Mutations.Size, r.Mutations.ModTime,
		r.FASTA.Path, r.FASTA.Size, r.FASTA.ModTime)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// LookupRun returns the run with the given ID, or nil if none exists.
func (s *Store) LookupRun(id string) (*Run, error) {
	var r Run
	var seed, perms, mode int64
	err := s.db.QueryRow(`SELECT
		run_id, started_at, seed, permutations, context_mode, prob_inactive,
		mutations_path, mutations_size, mutations_mtime,
		fasta_path, fasta_size, fasta_mtime
		FROM runs WHERE run_id=?`, id).Scan(
		&r.ID, &r.StartedAt, &seed, &perms, &mode, &r.ProbInactive,
		&r.Mutations.Path, &r.Mutations.Size, &r.Mutations.ModTime,
		&r.FASTA.Path, &r.FASTA.Size, &r.FASTA.ModTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", id, err)
	}
	r.Seed = uint64(seed)
	r.Permutations = int(perms)
	r.ContextMode = int(mode)
	return &r, nil
}
