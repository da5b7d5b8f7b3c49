package alignment

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// Opts controls Open.
type Opts struct {
	// FileType forces the input encoding.  If Unknown, it is guessed from the
	// path.
	FileType FileType
	// FlagExclude drops records whose FLAG intersects this value.
	FlagExclude int
	// MaxLoggedErrors bounds the number of malformed records that are logged
	// individually.  All of them are counted.
	MaxLoggedErrors int
}

// DefaultOpts is the default Opts.
var DefaultOpts = Opts{MaxLoggedErrors: 10}

// Counts tallies what a Source has read so far.
type Counts struct {
	// Records is the number of records read, including dropped ones.
	Records int
	// Unmapped is the number of records dropped for having no alignment.
	Unmapped int
	// Filtered is the number of records dropped by Opts.FlagExclude.
	Filtered int
	// Skipped is the number of malformed records.
	Skipped int
}

// Source iterates over the mapped records of one SAM or BAM input, in input
// order. Thread compatible.
type Source interface {
	// Header returns the header of the input.
	Header() *sam.Header

	// Scan advances to the next mapped, non-excluded, well-formed record.  It
	// returns false at the end of the input or on a fatal error; Err
	// distinguishes the two.  Malformed records are skipped, not fatal.
	Scan() bool

	// Record returns the current record.  REQUIRES: the last call to Scan
	// returned true.
	Record() *Record

	// Err returns the fatal error that stopped Scan, or nil.
	Err() error

	// Counts returns the record tallies so far.
	Counts() Counts

	// Close releases the input.  It must be called exactly once.
	Close() error
}

// recordReader is implemented by both samReader and hts bam.Reader.
type recordReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

type source struct {
	in      recordReader
	opts    Opts
	closers []func() error
	counts  Counts
	rec     *Record
	err     error
	logged  int
}

// Open creates a Source reading path, which may be "-" for standard input.
// SAM input is decompressed if needed.
func Open(ctx context.Context, path string, opts Opts) (Source, error) {
	var (
		in      io.Reader
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := file.Open(ctx, path)
		if err != nil {
			return nil, errors.E(err, "open alignments", path)
		}
		in = f.Reader(ctx)
		closers = append(closers, func() error { return f.Close(ctx) })
	}
	fileType := opts.FileType
	if fileType == Unknown {
		fileType = GuessFileType(path)
	}
	var rr recordReader
	switch fileType {
	case BAM:
		br, err := bam.NewReader(in, 0)
		if err != nil {
			closeAll()
			return nil, errors.E(err, "open BAM", path)
		}
		closers = append(closers, br.Close)
		rr = br
		log.Debug.Printf("alignment.Open: %s as %v", path, fileType)
	default:
		zr, compressed := compress.NewReader(in)
		closers = append(closers, zr.Close)
		sr, err := newSAMReader(zr)
		if err != nil {
			closeAll()
			return nil, errors.E(err, path)
		}
		rr = sr
		log.Debug.Printf("alignment.Open: %s as %v (compressed: %v)", path, fileType, compressed)
	}
	return newSource(rr, opts, closers...), nil
}

// NewSAMSource creates a Source reading uncompressed SAM text from r.
func NewSAMSource(r io.Reader, opts Opts) (Source, error) {
	sr, err := newSAMReader(r)
	if err != nil {
		return nil, err
	}
	return newSource(sr, opts), nil
}

func newSource(in recordReader, opts Opts, closers ...func() error) *source {
	return &source{in: in, opts: opts, closers: closers}
}

// Header implements Source.
func (s *source) Header() *sam.Header { return s.in.Header() }

// Record implements Source.
func (s *source) Record() *Record { return s.rec }

// Err implements Source.
func (s *source) Err() error { return s.err }

// Counts implements Source.
func (s *source) Counts() Counts { return s.counts }

func (s *source) lineNumber() int {
	if lr, ok := s.in.(interface{ LineNumber() int }); ok {
		return lr.LineNumber()
	}
	return s.counts.Records
}

// Scan implements Source.
func (s *source) Scan() bool {
	s.rec = nil
	for s.err == nil {
		r, err := s.in.Read()
		if err == io.EOF {
			return false
		}
		s.counts.Records++
		if err != nil {
			if merr, ok := err.(*MalformedAlignmentError); ok {
				s.skip(merr)
				continue
			}
			s.err = err
			return false
		}
		if r.Flags&sam.Unmapped != 0 || r.Ref == nil {
			s.counts.Unmapped++
			continue
		}
		if int(r.Flags)&s.opts.FlagExclude != 0 {
			s.counts.Filtered++
			continue
		}
		rec, err := newRecord(r, s.lineNumber())
		if err != nil {
			s.skip(err.(*MalformedAlignmentError))
			continue
		}
		s.rec = rec
		return true
	}
	return false
}

func (s *source) skip(err *MalformedAlignmentError) {
	s.counts.Skipped++
	switch {
	case s.logged < s.opts.MaxLoggedErrors:
		log.Error.Printf("skipping record: %v", err)
	case s.logged == s.opts.MaxLoggedErrors:
		log.Error.Printf("skipping record: %v (further malformed records are counted but not logged)", err)
	}
	s.logged++
}

// Close implements Source.
func (s *source) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if e := s.closers[i](); e != nil && err == nil {
			err = e
		}
	}
	s.closers = nil
	return err
}

// String implements fmt.Stringer.
func (c Counts) String() string {
	return fmt.Sprintf("%d records read, %d unmapped, %d excluded by flag, %d malformed",
		c.Records, c.Unmapped, c.Filtered, c.Skipped)
}
