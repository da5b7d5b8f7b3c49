package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/grailbio/base/tsv"
)

// GenerateIndex writes a samtools-compatible index (*.fai) for the FASTA data
// read from in.  The index can later be passed to NewIndexed() to access the
// FASTA file randomly.  It applies the same validity rules as New.
//
// The index format is defined by "samtools faidx"
// (http://www.htslib.org/doc/faidx.html).
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		tsvOut      = tsv.NewWriter(out)
		r           = bufio.NewReader(in)
		seqName     string
		seqLine     int
		lineNum     int
		seqStartOff int64
		totalBases  int
		lineBases   int
		lineWidth   int
		cumByte     int64
		eof         bool
	)

	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	flush := func() {
		if totalBases == 0 {
			setErr(malformed(seqLine, "sequence %q is empty", seqName))
			return
		}
		tsvOut.WriteString(seqName)
		tsvOut.WriteInt64(int64(totalBases))
		tsvOut.WriteInt64(seqStartOff)
		tsvOut.WriteInt64(int64(lineBases))
		tsvOut.WriteInt64(int64(lineWidth))
		setErr(tsvOut.EndLine())
	}
	for !eof && err == nil {
		fullLine, e := r.ReadBytes('\n')
		if e == io.EOF { // Process fullLine, then exit the loop
			eof = true
		} else if e != nil {
			setErr(e)
		}
		if len(fullLine) == 0 {
			continue
		}
		lineNum++
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if seqLine != 0 {
				flush()
			}
			seqName = seqNameBytes(line[1:])
			seqLine = lineNum
			if seqName == "" {
				setErr(malformed(lineNum, "missing sequence name"))
			}
			seqStartOff = cumByte
			lineWidth = 0
			lineBases = 0
			totalBases = 0
			continue
		}
		if seqLine == 0 {
			setErr(malformed(lineNum, "sequence data before the first '>' header"))
			break
		}
		if lineWidth == 0 {
			lineWidth = len(fullLine)
			lineBases = len(line)
		}
		totalBases += len(line)
	}
	if err != nil {
		return err
	}
	if seqLine == 0 {
		return malformed(0, "no sequences found")
	}
	flush()
	setErr(tsvOut.Flush())
	return
}

func seqNameBytes(header []byte) string {
	return seqName(string(bytes.TrimLeft(header, " \t")))
}
