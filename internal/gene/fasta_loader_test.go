package gene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{">ENST00000311936.8|ENSG00000133703.14|OTTHUMG|OTTHUMT|KRAS-201|KRAS|567|CDS:1-567|", "KRAS"},
		{">TP53 tumor protein p53", "TP53"},
		{">CTNNB1", "CTNNB1"},
		{">ENST00000311936.8|KRAS", "ENST00000311936.8"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseHeader(tt.header))
		})
	}
}

func TestFASTALoader_ParseFASTA(t *testing.T) {
	fastaContent := `>KRAS
ATGACTGAATATAAACTTGTGGTAGTTGGAGCT
ggtggcgtaggcaagagtgccttgacgatacag
>ENST00000000001.1|ENSG00000000001.1|-|-|TEST-201|TEST|27|UTR5:1-3|CDS:4-12|UTR3:13-27|
CCCATGGGTTAAGGGGGGGGGGGGGGG
`

	loader := NewFASTALoader("")
	require.NoError(t, loader.LoadReader(strings.NewReader(fastaContent)))
	assert.Equal(t, 2, loader.SequenceCount())

	kras := loader.Sequence("KRAS")
	require.NotNil(t, kras)
	assert.Equal(t, "ATGACTGAATATAAACTTGTGGTAGTTGGAGCTGGTGGCGTAGGCAAGAGTGCCTTGACGATACAG", kras.CDS)

	test := loader.Sequence("TEST")
	require.NotNil(t, test)
	assert.Equal(t, "ATGGGTTAA", test.CDS, "CDS range from header should be applied")

	assert.Nil(t, loader.Sequence("MISSING"))
}

func TestFASTALoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genes.fa")
	require.NoError(t, os.WriteFile(path, []byte(">G1\nATGAAATAA\n"), 0o644))

	loader := NewFASTALoader(path)
	require.NoError(t, loader.Load())

	seq := loader.Sequence("G1")
	require.NotNil(t, seq)
	assert.Equal(t, "ATGAAATAA", seq.CDS)
}

func TestFASTALoader_MissingFile(t *testing.T) {
	loader := NewFASTALoader(filepath.Join(t.TempDir(), "missing.fa"))
	assert.Error(t, loader.Load())
}
