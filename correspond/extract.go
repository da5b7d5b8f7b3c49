// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package correspond

import (
	"fmt"

	"github.com/grailbio/sam2tsv/encoding/alignment"
	"github.com/grailbio/sam2tsv/encoding/fasta"
)

// Tuple is one exact correspondence between a reference base and a query
// base.
type Tuple struct {
	RefName   string
	RefPos    int
	QueryName string
	QueryPos  int
	// Reverse is true if the read aligned to the reverse strand.
	Reverse bool
}

// UnknownContigError is returned when a record is aligned to a contig that the
// reference does not contain.  The inputs are incompatible, so it is fatal.
type UnknownContigError struct {
	Contig string
	// Name and Line identify the first record that referenced Contig.
	Name string
	Line int
}

func (e *UnknownContigError) Error() string {
	return fmt.Sprintf("contig %q (record %s at line %d) is not in the reference", e.Contig, e.Name, e.Line)
}

// ExtractOpts controls Extract.
type ExtractOpts struct {
	// IgnoreCase compares bases without regard to ASCII case, so soft-masked
	// (lowercase) reference bases match uppercase read bases.  By default the
	// comparison is exact.
	IgnoreCase bool
}

// Iterator yields the tuples of one record, in aligned-pair order.  Thread
// compatible.
type Iterator struct {
	rec    *alignment.Record
	opts   ExtractOpts
	pairs  alignment.PairScanner
	refLen int
	// window holds the reference bases [winStart, winStart+len(window)).
	window   string
	winStart int
	tuple    Tuple
	err      error
}

// Extract returns an iterator over the correspondences of rec against ref.  It
// only reads ref, so any number of Extract calls may share one reference
// concurrently.
//
// If rec's contig is not in ref, the iterator is empty and Err returns an
// *UnknownContigError.  If an aligned pair points past the end of the query
// sequence or the contig, iteration stops there and Err returns an
// *alignment.MalformedAlignmentError; tuples already yielded are valid.
func Extract(rec *alignment.Record, ref fasta.Fasta, opts ExtractOpts) *Iterator {
	it := &Iterator{rec: rec, opts: opts}
	it.pairs.Reset(rec)
	n, err := ref.Len(rec.Contig)
	if err != nil {
		it.err = &UnknownContigError{Contig: rec.Contig, Name: rec.Name, Line: rec.Line}
		return it
	}
	it.refLen = int(n)
	start, end := alignment.RefSpan(rec)
	if end > it.refLen {
		end = it.refLen
	}
	if start < end {
		if it.window, err = ref.Get(rec.Contig, uint64(start), uint64(end)); err != nil {
			it.err = fmt.Errorf("read reference %s:%d-%d: %v", rec.Contig, start, end, err)
			return it
		}
		it.winStart = start
	}
	return it
}

// Scan advances to the next tuple.  It returns false when the record is
// exhausted or an error occurs.
func (it *Iterator) Scan() bool {
	if it.err != nil {
		return false
	}
	rec := it.rec
	for it.pairs.Scan() {
		p := it.pairs.Pair()
		if p.Query == alignment.Undefined || p.Ref == alignment.Undefined {
			continue
		}
		if p.Query >= len(rec.Seq) {
			it.err = &alignment.MalformedAlignmentError{Line: rec.Line, Name: rec.Name,
				Err: fmt.Errorf("query position %d is past the end of the %d-base sequence (CIGAR %v consumes %d)",
					p.Query, len(rec.Seq), rec.Cigar, alignment.QueryLen(rec))}
			return false
		}
		if p.Ref >= it.refLen {
			it.err = &alignment.MalformedAlignmentError{Line: rec.Line, Name: rec.Name,
				Err: fmt.Errorf("reference position %d is past the end of %s (length %d)", p.Ref, rec.Contig, it.refLen)}
			return false
		}
		q, r := rec.Seq[p.Query], it.window[p.Ref-it.winStart]
		if it.opts.IgnoreCase {
			q, r = upper(q), upper(r)
		}
		if q != r {
			continue
		}
		it.tuple = Tuple{
			RefName:   rec.Contig,
			RefPos:    p.Ref,
			QueryName: rec.Name,
			QueryPos:  p.Query,
			Reverse:   rec.Reverse,
		}
		return true
	}
	return false
}

// Tuple returns the current tuple.  REQUIRES: the last call to Scan returned
// true.
func (it *Iterator) Tuple() Tuple { return it.tuple }

// Err returns the error that stopped the iteration, or nil.
func (it *Iterator) Err() error { return it.err }

func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
