package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-perm/internal/store"
)

const testMutations = "Hugo_Symbol\tTumor_Seq_Allele2\tVariant_Classification\tCoding_Position\n" +
	"HOT\tA\tMissense_Mutation\t30\n" +
	"HOT\tA\tMissense_Mutation\t30\n" +
	"HOT\tA\tMissense_Mutation\t30\n" +
	"HOT\tA\tMissense_Mutation\t30\n" +
	"HOT\tA\tMissense_Mutation\t30\n" +
	"NSN\tA\tNonsense_Mutation\t1\n" +
	"NSN\tA\tNonsense_Mutation\t4\n" +
	"NSN\t-\tFrame_Shift_Del\tNA\n" +
	"NOSEQ\tT\tMissense_Mutation\t3\n"

func writeInputs(t *testing.T) (muts, fasta string) {
	t.Helper()
	dir := t.TempDir()
	muts = filepath.Join(dir, "muts.txt")
	fasta = filepath.Join(dir, "genes.fa")
	require.NoError(t, os.WriteFile(muts, []byte(testMutations), 0644))
	require.NoError(t, os.WriteFile(fasta, []byte(
		">HOT\n"+strings.Repeat("GCT", 30)+"\n>NSN\n"+strings.Repeat("TGG", 10)+"\n"), 0644))
	return muts, fasta
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	muts, fasta := writeInputs(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "results.txt")
	dbPath := filepath.Join(dir, "results.duckdb")

	_, err := execute(t, "run", "-m", muts, "-f", fasta, "-n", "100", "--seed", "7",
		"--context", "0", "-o", outPath, "--db", dbPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3, "header plus HOT and NSN")
	assert.True(t, strings.HasPrefix(lines[0], "Gene\tSNVs\t"))
	assert.True(t, strings.HasPrefix(lines[1], "HOT\t5\t0\t"))
	assert.True(t, strings.HasPrefix(lines[2], "NSN\t2\t1\t"))

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.LookupGene("HOT")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].SNVs)

	run, err := s.LookupRun(rows[0].RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, uint64(7), run.Seed)
	assert.Equal(t, 100, run.Permutations)
	assert.Equal(t, muts, run.Mutations.Path)
	assert.Equal(t, int64(len(testMutations)), run.Mutations.Size)
}

func TestRunCommand_Stdout(t *testing.T) {
	muts, fasta := writeInputs(t)

	out, err := execute(t, "run", "-m", muts, "-f", fasta, "-n", "50", "--seed", "1", "--context", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Gene\tSNVs\t")
	assert.Contains(t, out, "\nHOT\t5\t")
}

func TestRunCommand_Errors(t *testing.T) {
	muts, fasta := writeInputs(t)

	_, err := execute(t, "run", "-f", fasta)
	assert.ErrorContains(t, err, "--mutations is required")

	_, err = execute(t, "run", "-m", muts)
	assert.ErrorContains(t, err, "--fasta is required")

	_, err = execute(t, "run", "-m", muts, "-f", fasta, "--context", "4")
	assert.ErrorContains(t, err, "unsupported context mode")

	_, err = execute(t, "run", "-m", muts, "-f", fasta, "-n", "0")
	assert.ErrorContains(t, err, "permutations must be at least 1")

	t.Setenv("VIBE_PERM_SEED", "-3")
	_, err = execute(t, "run", "-m", muts, "-f", fasta)
	assert.ErrorContains(t, err, "invalid seed")
}

func TestResultsCommand(t *testing.T) {
	muts, fasta := writeInputs(t)
	dbPath := filepath.Join(t.TempDir(), "results.duckdb")

	_, err := execute(t, "run", "-m", muts, "-f", fasta, "-n", "100", "--seed", "9223372036854775808",
		"--context", "0", "-o", filepath.Join(t.TempDir(), "out.txt"), "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, "results", "HOT", "--db", dbPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, resultsColumns, strings.Split(lines[0], "\t"))

	row := strings.Split(lines[1], "\t")
	require.Len(t, row, len(resultsColumns))
	assert.Equal(t, "9223372036854775808", row[2])
	assert.Equal(t, "100", row[3])
	assert.Equal(t, "0", row[4])
	assert.Equal(t, "HOT", row[5])
	assert.Equal(t, "5", row[6])
	assert.Equal(t, "-", row[8], "deleterious test skipped")
	assert.NotEqual(t, "-", row[14], "recurrent null mean stored")
	assert.Equal(t, "ok", row[16])

	_, err = execute(t, "results", "EGFR", "--db", dbPath)
	assert.ErrorContains(t, err, "no stored results for EGFR")

	out, err = execute(t, "results", "--clear", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared stored results")

	_, err = execute(t, "results", "HOT", "--db", dbPath)
	assert.ErrorContains(t, err, "no stored results for HOT")

	_, err = execute(t, "results", "HOT")
	assert.ErrorContains(t, err, "--db is required")
}

func TestRunCommand_EnvOverride(t *testing.T) {
	muts, fasta := writeInputs(t)
	t.Setenv("VIBE_PERM_PERMUTATIONS", "0")

	_, err := execute(t, "run", "-m", muts, "-f", fasta)
	assert.ErrorContains(t, err, "permutations must be at least 1")
}

func TestConfigSetGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	run := func(args ...string) string {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"--config", cfg}, args...))
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Contains(t, run("config"), "No configuration set")
	assert.Contains(t, run("config", "set", "pvalue.min_recurrent", "3"), "Set pvalue.min_recurrent = 3")

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "min_recurrent: 3")
	assert.NotContains(t, string(data), "mutations")

	viper.Reset()
	assert.Equal(t, "3\n", run("config", "get", "pvalue.min_recurrent"))
	assert.Contains(t, run("config"), "min_recurrent: 3")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vibe-perm version dev (none) built unknown\n", out)
}

func TestParseConfigValue(t *testing.T) {
	assert.Equal(t, true, parseConfigValue("yes"))
	assert.Equal(t, false, parseConfigValue("off"))
	assert.Equal(t, int64(42), parseConfigValue("42"))
	assert.Equal(t, 0.05, parseConfigValue("0.05"))
	assert.Equal(t, "trinucleotide", parseConfigValue("trinucleotide"))
}
