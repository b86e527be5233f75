package gene

import "strings"

// MutationInfo describes the protein-level effect of a single-base substitution.
type MutationInfo struct {
	ReferenceCodon string
	SomaticCodon   string
	ReferenceAA    byte
	SomaticAA      byte
	// CodonPos is the 0-based residue index, or -1 when the position does
	// not fall on a complete codon.
	CodonPos int
}

// Sequence is the coding sequence of one gene.
type Sequence struct {
	Name string
	CDS  string
}

// NewSequence creates a Sequence, normalizing the CDS to upper case.
func NewSequence(name, cds string) *Sequence {
	return &Sequence{Name: name, CDS: strings.ToUpper(cds)}
}

// Len returns the CDS length in nucleotides.
func (s *Sequence) Len() int {
	return len(s.CDS)
}

// Codon returns the codon at a 0-based codon index, or "" if incomplete.
func (s *Sequence) Codon(codonPos int) string {
	if codonPos < 0 {
		return ""
	}
	start := codonPos * 3
	end := start + 3
	if end > len(s.CDS) {
		return ""
	}
	return s.CDS[start:end]
}

// Annotate returns the reference and somatic codon and amino acid for
// substituting base at the 0-based coding position pos.
func (s *Sequence) Annotate(pos int, base byte) MutationInfo {
	codonPos := pos / 3
	refCodon := s.Codon(codonPos)
	if pos < 0 || refCodon == "" {
		return MutationInfo{
			ReferenceAA: UnknownAA,
			SomaticAA:   UnknownAA,
			CodonPos:    -1,
		}
	}

	somaticCodon := MutateCodon(refCodon, pos%3, base)
	return MutationInfo{
		ReferenceCodon: refCodon,
		SomaticCodon:   somaticCodon,
		ReferenceAA:    TranslateCodon(refCodon),
		SomaticAA:      TranslateCodon(somaticCodon),
		CodonPos:       codonPos,
	}
}
