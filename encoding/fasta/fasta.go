// Package fasta contains code for parsing (optionally indexed) FASTA files.
// See http://www.htslib.org/doc/faidx.html.  Briefly, FASTA files consist of a
// number of named sequences that may be interrupted by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// whitespace immediately after '>'.  Any text after the first space or tab is
// ignored.  For example, '>chr1 A viral sequence' becomes 'chr1'.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

// MalformedReferenceError is returned when FASTA data (or its index) cannot be
// used as a reference: no records, an unnamed or empty record, or a repeated
// sequence name.
type MalformedReferenceError struct {
	// Line is the 1-based line of the input where the problem was detected, or
	// 0 if it applies to the input as a whole.
	Line int
	Msg  string
}

func (e *MalformedReferenceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed FASTA reference: line %d: %s", e.Line, e.Msg)
	}
	return "malformed FASTA reference: " + e.Msg
}

func malformed(line int, format string, args ...interface{}) error {
	return &MalformedReferenceError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

type fasta struct {
	seqs     map[string]string
	seqNames []string
}

// seqName extracts the sequence name from a header line, minus the leading '>'.
func seqName(header string) string {
	if i := strings.IndexAny(header, " \t\r"); i >= 0 {
		header = header[:i]
	}
	return header
}

// stripSpace removes all whitespace from a sequence line.
func stripSpace(line string) string {
	if strings.IndexAny(line, " \t\r\v\f") < 0 {
		return line
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\v', '\f':
			return -1
		}
		return r
	}, line)
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader) (Fasta, error) {
	f := &fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var (
		name       string
		nameLine   int
		lineNum    int
		inSequence bool
		seq        strings.Builder
	)
	// add stores the sequence accumulated so far under name.
	add := func() error {
		if seq.Len() == 0 {
			return malformed(nameLine, "sequence %q is empty", name)
		}
		if _, ok := f.seqs[name]; ok {
			return malformed(nameLine, "duplicate sequence name %q", name)
		}
		f.seqs[name] = seq.String()
		f.seqNames = append(f.seqNames, name)
		seq.Reset()
		return nil
	}
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if inSequence { // We need to store the previous sequence first.
				if err := add(); err != nil {
					return nil, err
				}
			}
			name = seqName(strings.TrimLeft(line[1:], " \t"))
			nameLine = lineNum
			if name == "" {
				return nil, malformed(lineNum, "missing sequence name")
			}
			inSequence = true
			continue
		}
		if !inSequence {
			return nil, malformed(lineNum, "sequence data before the first '>' header")
		}
		seq.WriteString(stripSpace(line))
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	if !inSequence {
		return nil, malformed(0, "no sequences found")
	}
	if err := add(); err != nil {
		return nil, err
	}
	return f, nil
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", fmt.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seq string) (uint64, error) {
	s, ok := f.seqs[seq]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seq)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
