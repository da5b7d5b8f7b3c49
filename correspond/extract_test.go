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
package correspond_test

import (
	"strings"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/sam2tsv/correspond"
	"github.com/grailbio/sam2tsv/encoding/alignment"
	"github.com/grailbio/sam2tsv/encoding/fasta"
)

func newRef(t *testing.T, data string) fasta.Fasta {
	ref, err := fasta.New(strings.NewReader(data))
	require.NoError(t, err)
	return ref
}

func newRecord(t *testing.T, name, contig string, pos int, cigar, seq string, reverse bool) *alignment.Record {
	rec := &alignment.Record{Name: name, Contig: contig, Pos: pos, Seq: []byte(seq), Reverse: reverse, Line: 1}
	if cigar != "" {
		c, err := sam.ParseCigar([]byte(cigar))
		require.NoError(t, err)
		rec.Cigar = c
	}
	return rec
}

func extractAll(rec *alignment.Record, ref fasta.Fasta, opts correspond.ExtractOpts) ([]correspond.Tuple, error) {
	var tuples []correspond.Tuple
	it := correspond.Extract(rec, ref, opts)
	for it.Scan() {
		tuples = append(tuples, it.Tuple())
	}
	return tuples, it.Err()
}

func TestExtractDropsMismatch(t *testing.T) {
	ref := newRef(t, ">chr1\nACGTACGT\n")
	rec := newRecord(t, "read1", "chr1", 0, "8M", "ACGAACGT", false)
	got, err := extractAll(rec, ref, correspond.ExtractOpts{})
	require.NoError(t, err)
	var want []correspond.Tuple
	for _, pos := range []int{0, 1, 2, 4, 5, 6, 7} {
		want = append(want, correspond.Tuple{RefName: "chr1", RefPos: pos, QueryName: "read1", QueryPos: pos})
	}
	assert.Equal(t, want, got)
}

func TestExtractIndels(t *testing.T) {
	ref := newRef(t, ">chr1\nAACCGGTTAACC\n")
	// TT is clipped, A is inserted and ref[5] is deleted.
	rec := newRecord(t, "r", "chr1", 2, "2S2M1I1M1D2M", "TTCCAGTT", true)
	got, err := extractAll(rec, ref, correspond.ExtractOpts{})
	require.NoError(t, err)
	assert.Equal(t, []correspond.Tuple{
		{RefName: "chr1", RefPos: 2, QueryName: "r", QueryPos: 2, Reverse: true},
		{RefName: "chr1", RefPos: 3, QueryName: "r", QueryPos: 3, Reverse: true},
		{RefName: "chr1", RefPos: 4, QueryName: "r", QueryPos: 5, Reverse: true},
		{RefName: "chr1", RefPos: 6, QueryName: "r", QueryPos: 6, Reverse: true},
		{RefName: "chr1", RefPos: 7, QueryName: "r", QueryPos: 7, Reverse: true},
	}, got)
	for _, tuple := range got {
		assert.True(t, tuple.Reverse)
	}
}

func TestExtractEmpty(t *testing.T) {
	ref := newRef(t, ">chr1\nACGT\n")
	for _, rec := range []*alignment.Record{
		newRecord(t, "nocigar", "chr1", 0, "", "ACGT", false),
		newRecord(t, "clipped", "chr1", 0, "4S", "ACGT", false),
		newRecord(t, "deleted", "chr1", 0, "4D", "", false),
		newRecord(t, "inserted", "chr1", 0, "4I", "ACGT", false),
	} {
		got, err := extractAll(rec, ref, correspond.ExtractOpts{})
		assert.NoError(t, err, rec.Name)
		assert.Empty(t, got, rec.Name)
	}
}

func TestExtractUnknownContig(t *testing.T) {
	ref := newRef(t, ">chr1\nACGT\n")
	rec := newRecord(t, "r", "chr9", 0, "4M", "ACGT", false)
	got, err := extractAll(rec, ref, correspond.ExtractOpts{})
	assert.Empty(t, got)
	uerr, ok := err.(*correspond.UnknownContigError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "chr9", uerr.Contig)
	assert.Contains(t, uerr.Error(), `"chr9"`)
}

func TestExtractOutOfRange(t *testing.T) {
	ref := newRef(t, ">chr1\nACGTACGT\n")
	tests := []struct {
		rec  *alignment.Record
		want []int // reference positions emitted before the error
	}{
		// Sequence shorter than the CIGAR.
		{newRecord(t, "shortseq", "chr1", 0, "4M", "AC", false), []int{0, 1}},
		// No sequence at all.
		{newRecord(t, "noseq", "chr1", 0, "4M", "", false), nil},
		// Alignment runs off the end of the contig.
		{newRecord(t, "overhang", "chr1", 6, "4M", "GTAC", false), []int{6, 7}},
		// Alignment starts past the end of the contig.
		{newRecord(t, "outside", "chr1", 20, "2M", "AC", false), nil},
	}
	for _, tt := range tests {
		got, err := extractAll(tt.rec, ref, correspond.ExtractOpts{})
		merr, ok := err.(*alignment.MalformedAlignmentError)
		require.True(t, ok, "%s: got %v", tt.rec.Name, err)
		assert.Equal(t, tt.rec.Name, merr.Name)
		var pos []int
		for _, tuple := range got {
			pos = append(pos, tuple.RefPos)
		}
		assert.Equal(t, tt.want, pos, tt.rec.Name)
	}
}

func TestExtractCase(t *testing.T) {
	ref := newRef(t, ">chr1\nacgtACGT\n")
	rec := newRecord(t, "r", "chr1", 0, "8M", "ACGTACGT", false)

	got, err := extractAll(rec, ref, correspond.ExtractOpts{})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 4, got[0].RefPos)

	got, err = extractAll(rec, ref, correspond.ExtractOpts{IgnoreCase: true})
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestExtractIndexedReference(t *testing.T) {
	const fa = ">chr1 first\nACGTA\nCGTAC\nGT\n"
	var idx strings.Builder
	require.NoError(t, fasta.GenerateIndex(&idx, strings.NewReader(fa)))
	ref, err := fasta.NewIndexed(strings.NewReader(fa), strings.NewReader(idx.String()))
	require.NoError(t, err)

	rec := newRecord(t, "r", "chr1", 3, "3M2D4M", "TACACGT", false)
	got, err := extractAll(rec, ref, correspond.ExtractOpts{})
	require.NoError(t, err)
	var pos []int
	for _, tuple := range got {
		pos = append(pos, tuple.RefPos)
	}
	// ref[3:6]=TAC matches; ref[8:12]=ACGT matches.
	assert.Equal(t, []int{3, 4, 5, 8, 9, 10, 11}, pos)
}
