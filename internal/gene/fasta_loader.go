package gene

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FASTALoader loads gene coding sequences from a FASTA file.
type FASTALoader struct {
	path      string
	sequences map[string]string // gene name -> sequence
	cdsRanges map[string][2]int // gene name -> [cdsStart, cdsEnd] (1-based from header)
}

// NewFASTALoader creates a new FASTA loader.
func NewFASTALoader(path string) *FASTALoader {
	return &FASTALoader{
		path:      path,
		sequences: make(map[string]string),
		cdsRanges: make(map[string][2]int),
	}
}

// Load parses the FASTA file and stores sequences indexed by gene name.
func (l *FASTALoader) Load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return l.parseFASTA(reader)
}

// LoadReader parses FASTA content from r.
func (l *FASTALoader) LoadReader(r io.Reader) error {
	return l.parseFASTA(r)
}

// parseFASTA parses FASTA content. Two header styles are accepted:
//
//	>TP53 some description
//	>ENST00000269305.9|ENSG00000141510.18|...|TP53-201|TP53|2512|UTR5:1-202|CDS:203-1384|UTR3:1385-2512|
//
// The first is keyed by its first token, the second by its gene name field.
func (l *FASTALoader) parseFASTA(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var currentName string
	var currentSeq strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, ">") {
			if currentName != "" && currentSeq.Len() > 0 {
				l.sequences[currentName] = currentSeq.String()
			}

			currentName = parseHeader(line)
			if cdsStart, cdsEnd, ok := parseCDSRange(line); ok {
				l.cdsRanges[currentName] = [2]int{cdsStart, cdsEnd}
			}
			currentSeq.Reset()
		} else {
			currentSeq.WriteString(strings.ToUpper(strings.TrimSpace(line)))
		}
	}

	if currentName != "" && currentSeq.Len() > 0 {
		l.sequences[currentName] = currentSeq.String()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan FASTA: %w", err)
	}

	return nil
}

// parseHeader extracts the gene name from a FASTA header.
func parseHeader(header string) string {
	header = strings.TrimPrefix(header, ">")

	// GENCODE transcript FASTA: gene name is the sixth field
	if fields := strings.Split(header, "|"); len(fields) >= 6 {
		return fields[5]
	}

	if idx := strings.IndexAny(header, " \t|"); idx != -1 {
		return header[:idx]
	}
	return header
}

// parseCDSRange extracts CDS start and end positions from a GENCODE FASTA header.
// Returns 1-based start and end positions.
func parseCDSRange(header string) (start, end int, ok bool) {
	for _, field := range strings.Split(header, "|") {
		field = strings.TrimSpace(field)
		if !strings.HasPrefix(field, "CDS:") {
			continue
		}
		parts := strings.SplitN(field[4:], "-", 2)
		if len(parts) != 2 {
			return 0, 0, false
		}
		s, err1 := strconv.Atoi(parts[0])
		e, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return s, e, true
	}
	return 0, 0, false
}

// Sequence returns the coding sequence for a gene, or nil if unknown.
// If CDS boundaries were parsed from the header only the CDS portion is kept.
func (l *FASTALoader) Sequence(name string) *Sequence {
	seq, ok := l.sequences[name]
	if !ok {
		return nil
	}

	if cdsRange, hasCDS := l.cdsRanges[name]; hasCDS {
		start := cdsRange[0] - 1
		end := cdsRange[1]
		if start >= 0 && end <= len(seq) && start < end {
			seq = seq[start:end]
		}
	}

	return NewSequence(name, seq)
}

// SequenceCount returns the number of loaded sequences.
func (l *FASTALoader) SequenceCount() int {
	return len(l.sequences)
}
