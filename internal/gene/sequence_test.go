package gene

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_Annotate(t *testing.T) {
	// ATG GGT TGG TAA
	s := NewSequence("TEST", "atgggttggtaa")

	tests := []struct {
		name string
		pos  int
		base byte
		want MutationInfo
	}{
		{
			name: "start codon",
			pos:  0, base: 'C',
			want: MutationInfo{ReferenceCodon: "ATG", SomaticCodon: "CTG", ReferenceAA: 'M', SomaticAA: 'L', CodonPos: 0},
		},
		{
			name: "missense",
			pos:  4, base: 'A',
			want: MutationInfo{ReferenceCodon: "GGT", SomaticCodon: "GAT", ReferenceAA: 'G', SomaticAA: 'D', CodonPos: 1},
		},
		{
			name: "nonsense",
			pos:  8, base: 'A',
			want: MutationInfo{ReferenceCodon: "TGG", SomaticCodon: "TGA", ReferenceAA: 'W', SomaticAA: '*', CodonPos: 2},
		},
		{
			name: "synonymous",
			pos:  5, base: 'C',
			want: MutationInfo{ReferenceCodon: "GGT", SomaticCodon: "GGC", ReferenceAA: 'G', SomaticAA: 'G', CodonPos: 1},
		},
		{
			name: "out of range",
			pos:  12, base: 'A',
			want: MutationInfo{ReferenceAA: 'X', SomaticAA: 'X', CodonPos: -1},
		},
		{
			name: "negative",
			pos:  -1, base: 'A',
			want: MutationInfo{ReferenceAA: 'X', SomaticAA: 'X', CodonPos: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Annotate(tt.pos, tt.base))
		})
	}
}

func TestSequence_Codon(t *testing.T) {
	s := NewSequence("TEST", "ATGGGTTG")
	assert.Equal(t, "ATG", s.Codon(0))
	assert.Equal(t, "GGT", s.Codon(1))
	assert.Equal(t, "", s.Codon(2), "incomplete trailing codon")
	assert.Equal(t, "", s.Codon(-1))
	assert.Equal(t, 8, s.Len())
}
