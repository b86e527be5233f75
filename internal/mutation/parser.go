package mutation

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/vibe-perm/internal/seqcontext"
)

// Mutation table column names
const (
	ColGene                  = "Gene"
	ColHugoSymbol            = "Hugo_Symbol"
	ColTumorAllele           = "Tumor_Allele"
	ColTumorSeqAllele2       = "Tumor_Seq_Allele2"
	ColVariantClassification = "Variant_Classification"
	ColCodingPosition        = "Coding_Position"
	ColContext               = "Context"
	ColReferenceAA           = "Reference_AA"
	ColSomaticAA             = "Somatic_AA"
	ColCodonPos              = "Codon_Pos"
)

// ColumnIndices holds the indices of the mutation table columns.
type ColumnIndices struct {
	Gene                  int
	TumorAllele           int
	VariantClassification int
	CodingPosition        int
	Context               int
	ReferenceAA           int
	SomaticAA             int
	CodonPos              int
}

// Parser reads mutation records from a tab-delimited table.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	columns    ColumnIndices
	skipped    int
}

// NewParser creates a new parser for the given file.
// Supports both plain and gzipped tables.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mutation file: %w", err)
	}

	p := &Parser{file: file}

	buf := make([]byte, 2)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read mutation header: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek mutation file: %w", err)
	}

	// gzip magic number (0x1f, 0x8b)
	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// parseHeader skips comments and blank lines and parses the header line.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{
					Line:    p.lineNumber,
					Message: "no header line found",
				}
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		return p.parseColumnIndices(line)
	}
}

// parseColumnIndices finds the column indices in the header line.
func (p *Parser) parseColumnIndices(headerLine string) error {
	p.columns = ColumnIndices{
		Gene:                  -1,
		TumorAllele:           -1,
		VariantClassification: -1,
		CodingPosition:        -1,
		Context:               -1,
		ReferenceAA:           -1,
		SomaticAA:             -1,
		CodonPos:              -1,
	}

	for i, col := range strings.Split(headerLine, "\t") {
		switch col {
		case ColGene, ColHugoSymbol:
			p.columns.Gene = i
		case ColTumorAllele, ColTumorSeqAllele2:
			p.columns.TumorAllele = i
		case ColVariantClassification:
			p.columns.VariantClassification = i
		case ColCodingPosition:
			p.columns.CodingPosition = i
		case ColContext:
			p.columns.Context = i
		case ColReferenceAA:
			p.columns.ReferenceAA = i
		case ColSomaticAA:
			p.columns.SomaticAA = i
		case ColCodonPos:
			p.columns.CodonPos = i
		}
	}

	required := []struct {
		idx  int
		name string
	}{
		{p.columns.Gene, ColGene},
		{p.columns.TumorAllele, ColTumorAllele},
		{p.columns.CodingPosition, ColCodingPosition},
	}
	for _, r := range required {
		if r.idx == -1 {
			return &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("required column '%s' not found in header", r.name),
			}
		}
	}

	return nil
}

// Next reads the next record. Returns nil, nil when there are no more
// records. Rows that are neither frameshifts nor single-base substitutions
// are skipped and counted.
func (p *Parser) Next() (*Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read mutation line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r, err := p.parseLine(line)
		if err != nil {
			return nil, err
		}
		if r == nil {
			p.skipped++
			continue
		}
		return r, nil
	}
}

// ReadAll reads every remaining record.
func (p *Parser) ReadAll() ([]Record, error) {
	var out []Record
	for {
		r, err := p.Next()
		if err != nil {
			return nil, err
		}
		if r == nil {
			return out, nil
		}
		out = append(out, *r)
	}
}

func (p *Parser) field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func isMissing(s string) bool {
	return s == "" || s == "NA" || s == "-" || s == "."
}

// parseLine parses a single data line. Returns nil for rows that are skipped.
func (p *Parser) parseLine(line string) (*Record, error) {
	fields := strings.Split(line, "\t")

	r := &Record{
		Gene:           p.field(fields, p.columns.Gene),
		Classification: p.field(fields, p.columns.VariantClassification),
		CodingPos:      -1,
		CodonPos:       -1,
	}
	if r.Gene == "" {
		return nil, p.errorf("missing gene name")
	}

	if r.IsFrameshift() {
		return r, nil
	}

	allele := strings.ToUpper(p.field(fields, p.columns.TumorAllele))
	if len(allele) != 1 || !strings.Contains("ACGT", allele) {
		return nil, nil
	}
	r.TumorAllele = allele[0]

	if pos := p.field(fields, p.columns.CodingPosition); !isMissing(pos) {
		n, err := strconv.Atoi(pos)
		if err != nil || n < 0 {
			return nil, p.errorf("invalid coding position: %s", pos)
		}
		r.Mappable = true
		r.CodingPos = n
		return r, nil
	}

	// Unmappable rows must describe themselves.
	r.Context = normalizeContext(p.field(fields, p.columns.Context))
	refAA := p.field(fields, p.columns.ReferenceAA)
	somAA := p.field(fields, p.columns.SomaticAA)
	if r.Context == "" || len(refAA) != 1 || len(somAA) != 1 {
		return nil, p.errorf("unmappable mutation needs %s, %s and %s", ColContext, ColReferenceAA, ColSomaticAA)
	}
	r.ReferenceAA = strings.ToUpper(refAA)[0]
	r.SomaticAA = strings.ToUpper(somAA)[0]

	if cp := p.field(fields, p.columns.CodonPos); !isMissing(cp) {
		n, err := strconv.Atoi(cp)
		if err != nil {
			return nil, p.errorf("invalid codon position: %s", cp)
		}
		r.CodonPos = n
	}

	return r, nil
}

// normalizeContext upper-cases nucleotide contexts to match the index keys.
func normalizeContext(s string) string {
	if strings.EqualFold(s, seqcontext.NoneContext) {
		return seqcontext.NoneContext
	}
	return strings.ToUpper(s)
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.lineNumber, Message: fmt.Sprintf(format, args...)}
}

// Skipped returns how many rows were neither SNVs nor frameshifts.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mutation parse error at line %d: %s", e.Line, e.Message)
}
