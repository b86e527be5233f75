// Package output provides result output formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/vibe-perm/internal/runner"
)

// Columns is the header of the results table.
var Columns = []string{
	"Gene",
	"SNVs",
	"Frameshifts",
	"Deleterious",
	"Deleterious_P",
	"Deleterious_Q",
	"Recurrent",
	"Recurrent_P",
	"Recurrent_Q",
	"Entropy",
	"Entropy_P",
	"Entropy_Q",
	"Delta_Entropy",
	"Delta_Entropy_P",
	"Delta_Entropy_Q",
	"Effect_Entropy",
	"Effect_Recurrent",
	"Effect_Inactivating",
	"Effect_Entropy_P",
	"Effect_Entropy_Q",
	"Combined_P",
	"Deleterious_Null_Mean",
	"Recurrent_Null_Mean",
	"Recurrent_Null_P95",
	"Effect_Entropy_Null_Mean",
	"Status",
}

// ResultWriter writes gene results in tab-delimited format.
type ResultWriter struct {
	w *bufio.Writer
}

// NewResultWriter creates a new tab-delimited result writer.
func NewResultWriter(w io.Writer) *ResultWriter {
	return &ResultWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (rw *ResultWriter) WriteHeader() error {
	_, err := rw.w.WriteString(strings.Join(Columns, "\t") + "\n")
	return err
}

// Write writes a single gene. Values of tests that did not run are "-".
func (rw *ResultWriter) Write(r *runner.GeneResult) error {
	values := make([]string, 0, len(Columns))
	values = append(values, r.Gene, strconv.Itoa(r.SNVs), strconv.Itoa(r.Frameshifts))

	if r.Err != nil {
		for len(values) < len(Columns)-1 {
			values = append(values, "-")
		}
		values = append(values, "error: "+sanitize(r.Err.Error()))
		_, err := rw.w.WriteString(strings.Join(values, "\t") + "\n")
		return err
	}

	values = append(values,
		strconv.Itoa(r.Deleterious.Deleterious),
		formatNull(r.Deleterious.PValue),
		formatNull(r.DeleteriousQ),
		strconv.Itoa(r.Position.Recurrent),
		formatFloat(r.Position.RecurrentPValue),
		formatNull(r.RecurrentQ),
		formatFloat(r.Position.Entropy),
		formatFloat(r.Position.EntropyPValue),
		formatNull(r.EntropyQ),
		formatFloat(r.Position.DeltaEntropy),
		formatFloat(r.Position.DeltaEntropyPValue),
		formatNull(r.DeltaEntropyQ),
		formatFloat(r.Effect.Entropy),
		strconv.Itoa(r.Effect.Recurrent),
		strconv.Itoa(r.Effect.Inactivating),
		formatFloat(r.Effect.EntropyPValue),
		formatNull(r.EffectEntropyQ),
		formatNull(r.CombinedP),
		deleteriousNullMean(r),
		formatFloat(r.Position.Null.Mean),
		formatFloat(r.Position.Null.Percentile95),
		formatFloat(r.Effect.Null.Mean),
		"ok",
	)

	_, err := rw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAll writes the header followed by every result and flushes.
func (rw *ResultWriter) WriteAll(results []runner.GeneResult) error {
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	for i := range results {
		if err := rw.Write(&results[i]); err != nil {
			return err
		}
	}
	return rw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (rw *ResultWriter) Flush() error {
	return rw.w.Flush()
}

// deleteriousNullMean is "-" when the deleterious test was skipped.
func deleteriousNullMean(r *runner.GeneResult) string {
	if !r.Deleterious.PValue.Valid {
		return "-"
	}
	return formatFloat(r.Deleterious.Null.Mean)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatNull(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return formatFloat(v.Float64)
}

func sanitize(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}
