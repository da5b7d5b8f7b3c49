package alignment

import (
	"bufio"
	"bytes"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// placeholderRefLen is the length given to references that a SAM body names
// but its header does not declare.
const placeholderRefLen = 1<<31 - 1

// samReader reads SAM text one line at a time.  Unlike sam.Reader, a line that
// fails to parse does not end the stream: Read reports it as a
// *MalformedAlignmentError and the next call continues with the following
// line.
type samReader struct {
	in     *bufio.Reader
	header *sam.Header
	// known is the set of reference names present in header.
	known map[string]bool
	line  int
}

func newSAMReader(r io.Reader) (*samReader, error) {
	sr := &samReader{
		in:    bufio.NewReaderSize(r, 1<<20),
		known: map[string]bool{},
	}
	var text []byte
	for {
		p, err := sr.in.Peek(1)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, "read SAM header")
		}
		if p[0] != '@' {
			break
		}
		l, err := sr.in.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, errors.E(err, "read SAM header")
		}
		sr.line++
		text = append(text, l...)
		if len(l) > 0 && l[len(l)-1] != '\n' {
			text = append(text, '\n')
		}
	}
	h, err := sam.NewHeader(text, nil)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "parse SAM header")
	}
	sr.header = h
	for _, ref := range h.Refs() {
		sr.known[ref.Name()] = true
	}
	return sr, nil
}

// Header returns the SAM header.  It grows when the body names references
// missing from the @SQ lines.
func (sr *samReader) Header() *sam.Header { return sr.header }

// LineNumber returns the 1-based number of the line last read.
func (sr *samReader) LineNumber() int { return sr.line }

// Read returns the next record.  It returns io.EOF at the end of input, a
// *MalformedAlignmentError for a line that does not parse, and any other error
// for read failures.
func (sr *samReader) Read() (*sam.Record, error) {
	for {
		b, err := sr.in.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, errors.E(err, "read SAM")
		}
		if len(b) == 0 {
			return nil, io.EOF
		}
		sr.line++
		b = bytes.TrimRight(b, "\r\n")
		if len(b) == 0 {
			continue
		}
		return sr.parse(b)
	}
}

func (sr *samReader) parse(line []byte) (*sam.Record, error) {
	fields := bytes.SplitN(line, []byte{'\t'}, 8)
	malformed := func(err error) error {
		return &MalformedAlignmentError{Line: sr.line, Name: string(fields[0]), Err: err}
	}
	if len(fields) >= 3 {
		sr.addReference(fields[2], "*")
	}
	if len(fields) >= 7 {
		sr.addReference(fields[6], "*", "=")
	}
	rec := &sam.Record{}
	if err := rec.UnmarshalSAM(sr.header, line); err != nil {
		return nil, malformed(err)
	}
	return rec, nil
}

// addReference registers name in the header unless it is already known or is
// one of the given special values.
func (sr *samReader) addReference(name []byte, special ...string) {
	for _, s := range special {
		if string(name) == s {
			return
		}
	}
	if len(name) == 0 || sr.known[string(name)] {
		return
	}
	ref, err := sam.NewReference(string(name), "", "", placeholderRefLen, nil, nil)
	if err == nil {
		err = sr.header.AddReference(ref)
	}
	if err != nil {
		// UnmarshalSAM will reject the record.
		log.Debug.Printf("line %d: cannot register reference %q: %v", sr.line, name, err)
		return
	}
	sr.known[string(name)] = true
	log.Printf("reference %q (line %d) is not declared in the SAM header", name, sr.line)
}
