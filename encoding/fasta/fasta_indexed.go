package fasta

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// faiEntry is one line of a samtools .fai index:
//
//   <name> <length> <offset> <bases per line> <bytes per line>
//
// e.g. "chr3\t12345\t9000\t80\t81".  FASTQ indexes carry a sixth column,
// which is ignored.
type faiEntry struct {
	length    uint64 // number of bases
	offset    uint64 // file offset of the first base
	lineBases uint64
	lineBytes uint64 // lineBases plus the line terminator
}

// fileOffset returns the position of base pos in the FASTA file.
func (e faiEntry) fileOffset(pos uint64) uint64 {
	return e.offset + (pos/e.lineBases)*e.lineBytes + pos%e.lineBases
}

func parseFaiLine(lineNum int, line string) (string, faiEntry, error) {
	var e faiEntry
	fields := strings.Split(strings.TrimRight(line, " \t\r"), "\t")
	if (len(fields) != 5 && len(fields) != 6) || fields[0] == "" {
		return "", e, malformed(lineNum, "invalid index line: %q", line)
	}
	name := fields[0]
	for i, dst := range []*uint64{&e.length, &e.offset, &e.lineBases, &e.lineBytes} {
		v, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return "", e, malformed(lineNum, "invalid index field %q: %v", fields[i+1], err)
		}
		*dst = v
	}
	if e.length == 0 {
		return "", e, malformed(lineNum, "sequence %q is empty", name)
	}
	if e.lineBases == 0 || e.lineBytes < e.lineBases {
		return "", e, malformed(lineNum, "sequence %q has invalid line geometry %d/%d", name, e.lineBases, e.lineBytes)
	}
	return name, e, nil
}

type indexedFasta struct {
	entries map[string]faiEntry
	names   []string

	mu      sync.Mutex
	in      io.ReadSeeker
	scratch []byte
}

// NewIndexed creates a Fasta that reads sequences from fasta on demand, using
// the samtools .fai index read from index.  The index is validated up front;
// fasta is only touched by Get.
func NewIndexed(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	f := &indexedFasta{entries: map[string]faiEntry{}, in: fasta}
	sc := bufio.NewScanner(index)
	for lineNum := 1; sc.Scan(); lineNum++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		name, e, err := parseFaiLine(lineNum, sc.Text())
		if err != nil {
			return nil, err
		}
		if _, ok := f.entries[name]; ok {
			return nil, malformed(lineNum, "duplicate sequence name %q", name)
		}
		f.entries[name] = e
		f.names = append(f.names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA index")
	}
	if len(f.names) == 0 {
		return nil, malformed(0, "no sequences found in index")
	}
	return f, nil
}

// Len implements Fasta.Len().
func (f *indexedFasta) Len(seqName string) (uint64, error) {
	e, ok := f.entries[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return e.length, nil
}

// SeqNames implements Fasta.SeqNames().  Names are in index order.
func (f *indexedFasta) SeqNames() []string { return f.names }

// Get implements Fasta.Get().  It reads the bytes from the first to the last
// requested base in one go, then drops the line terminators in between.
func (f *indexedFasta) Get(seqName string, start, end uint64) (string, error) {
	e, ok := f.entries[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > e.length {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, e.length)
	}
	first, last := e.fileOffset(start), e.fileOffset(end-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := f.readAt(int64(first), int(last-first+1))
	if err != nil {
		return "", errors.Wrapf(err, "read %s:%d-%d", seqName, start, end)
	}
	var sb strings.Builder
	sb.Grow(int(end - start))
	terminator := e.lineBytes - e.lineBases
	for col := start % e.lineBases; len(raw) > 0; col = 0 {
		n := e.lineBases - col
		if n > uint64(len(raw)) {
			n = uint64(len(raw))
		}
		sb.Write(raw[:n])
		raw = raw[n:]
		if terminator > uint64(len(raw)) {
			break
		}
		raw = raw[terminator:]
	}
	if uint64(sb.Len()) != end-start {
		return "", errors.Errorf("read %d bases of %s:%d-%d; the index does not match the file",
			sb.Len(), seqName, start, end)
	}
	return sb.String(), nil
}

// readAt reads n bytes at off into f.scratch.  REQUIRES: f.mu is held.
func (f *indexedFasta) readAt(off int64, n int) ([]byte, error) {
	if _, err := f.in.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	if cap(f.scratch) < n {
		f.scratch = make([]byte, n)
	}
	buf := f.scratch[:n]
	if _, err := io.ReadFull(f.in, buf); err != nil {
		return nil, errors.Wrap(err, "unexpected end of FASTA file (stale index?)")
	}
	return buf, nil
}
