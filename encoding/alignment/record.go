package alignment

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// Undefined marks the missing side of an AlignedPair.
const Undefined = -1

// AlignedPair is one step of an alignment.  At least one of Query and Ref is
// defined.  Query indexes Record.Seq, Ref is a 0-based reference coordinate.
type AlignedPair struct {
	Query int
	Ref   int
}

// Record is one read's placement against the reference.
type Record struct {
	// Name is the query (read) name.
	Name string
	// Contig is the name of the reference sequence the read is aligned to.
	Contig string
	// Reverse is true if the read was reverse-complemented to align it.  Seq is
	// stored in reference orientation, i.e., already reverse-complemented.
	Reverse bool
	// Flags is the SAM FLAG value.
	Flags sam.Flags
	// Pos is the 0-based leftmost reference position of the alignment.
	Pos   int
	Cigar sam.Cigar
	// Seq holds the query bases as stored in the record.  It is empty if the
	// record has no sequence ("*").
	Seq []byte
	// Line is the 1-based input line for SAM, or the 1-based record ordinal for
	// BAM.
	Line int
}

// MalformedAlignmentError reports a structurally invalid record, or a record
// whose aligned pairs point outside its query sequence or reference contig.
// It affects one record only.
type MalformedAlignmentError struct {
	// Line is the 1-based line (SAM) or record ordinal (BAM).
	Line int
	// Name is the record's query name, if it could be determined.
	Name string
	Err  error
}

func (e *MalformedAlignmentError) Error() string {
	name := e.Name
	if name == "" {
		name = "?"
	}
	return fmt.Sprintf("malformed alignment record %s at line %d: %v", name, e.Line, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MalformedAlignmentError) Unwrap() error { return e.Err }

// newRecord converts a parsed hts record.  The caller has already dropped
// unmapped records.
func newRecord(r *sam.Record, line int) (*Record, error) {
	for _, co := range r.Cigar {
		con := co.Type().Consumes()
		if con.Query < 0 || con.Reference < 0 {
			return nil, &MalformedAlignmentError{Line: line, Name: r.Name,
				Err: fmt.Errorf("unsupported CIGAR operation %v in %v", co.Type(), r.Cigar)}
		}
	}
	if r.Pos < 0 {
		return nil, &MalformedAlignmentError{Line: line, Name: r.Name,
			Err: fmt.Errorf("mapped record without a position")}
	}
	return &Record{
		Name:    r.Name,
		Contig:  r.Ref.Name(),
		Reverse: r.Flags&sam.Reverse != 0,
		Flags:   r.Flags,
		Pos:     r.Pos,
		Cigar:   r.Cigar,
		Seq:     r.Seq.Expand(),
		Line:    line,
	}, nil
}
