package alignment_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/sam2tsv/encoding/alignment"
)

const samData = "@HD\tVN:1.6\tSO:unsorted\n" +
	"@SQ\tSN:chr1\tLN:8\n" +
	"r1\t0\tchr1\t1\t60\t8M\t*\t0\t0\tACGAACGT\t*\n" +
	"r2\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\t*\n" +
	"r3\t16\tchr1\t3\t60\t1S2M\t*\t0\t0\tAGT\t*\n" +
	"bad\tnotaflag\tchr1\t1\t60\t4M\t*\t0\t0\tACGT\t*\n" +
	"\n" +
	"short\t0\tchr1\n" +
	"r4\t256\tchr1\t1\t60\t2M\t*\t0\t0\tAC\t*\n" +
	"r5\t0\tchr2\t1\t60\t2M\t*\t0\t0\tAC\t*\n" +
	"r6\t0\tchr1\t5\t60\t1M\t*\t0\t0\tA\t*"

type scanned struct {
	name    string
	contig  string
	reverse bool
	pos     int
	seq     string
	line    int
}

func scanAll(t *testing.T, src alignment.Source) []scanned {
	var got []scanned
	for src.Scan() {
		r := src.Record()
		got = append(got, scanned{r.Name, r.Contig, r.Reverse, r.Pos, string(r.Seq), r.Line})
	}
	require.NoError(t, src.Err())
	return got
}

func TestSAMSource(t *testing.T) {
	src, err := alignment.NewSAMSource(strings.NewReader(samData), alignment.DefaultOpts)
	require.NoError(t, err)
	got := scanAll(t, src)
	assert.Equal(t, []scanned{
		{"r1", "chr1", false, 0, "ACGAACGT", 3},
		{"r3", "chr1", true, 2, "AGT", 5},
		{"r4", "chr1", false, 0, "AC", 9},
		{"r5", "chr2", false, 0, "AC", 10},
		{"r6", "chr1", false, 4, "A", 11},
	}, got)
	assert.Equal(t, alignment.Counts{Records: 8, Unmapped: 1, Skipped: 2}, src.Counts())
	assert.NoError(t, src.Close())
}

func TestSAMSourceFlagExclude(t *testing.T) {
	opts := alignment.DefaultOpts
	opts.FlagExclude = 0x100 | 0x10
	src, err := alignment.NewSAMSource(strings.NewReader(samData), opts)
	require.NoError(t, err)
	var names []string
	for _, s := range scanAll(t, src) {
		names = append(names, s.name)
	}
	assert.Equal(t, []string{"r1", "r5", "r6"}, names)
	assert.Equal(t, 2, src.Counts().Filtered)
}

func TestSAMSourceHeaderless(t *testing.T) {
	data := "q1\t0\tctgA\t2\t60\t3M\t*\t0\t0\tCGT\t*\n" +
		"q2\t16\tctgB\t1\t60\t2M1D1M\tctgA\t5\t0\tAAC\t*\n"
	src, err := alignment.NewSAMSource(strings.NewReader(data), alignment.DefaultOpts)
	require.NoError(t, err)
	got := scanAll(t, src)
	require.Len(t, got, 2)
	assert.Equal(t, "ctgA", got[0].contig)
	assert.Equal(t, "ctgB", got[1].contig)
	assert.Equal(t, 2, len(src.Header().Refs()))
	assert.Equal(t, 0, src.Counts().Skipped)
}

func TestSAMSourceEmpty(t *testing.T) {
	for _, data := range []string{"", "@HD\tVN:1.6\n", "\n\n"} {
		src, err := alignment.NewSAMSource(strings.NewReader(data), alignment.DefaultOpts)
		require.NoError(t, err)
		assert.False(t, src.Scan())
		assert.NoError(t, src.Err())
	}
}

func TestSAMSourceBadHeader(t *testing.T) {
	_, err := alignment.NewSAMSource(strings.NewReader("@SQ\tSN:chr1\tLN:notanumber\n"), alignment.DefaultOpts)
	assert.Error(t, err)
}

func TestOpenCompressedSAM(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "alignment")
	defer testutil.NoCleanupOnError(t, cleanup, tmpDir)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(samData))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := filepath.Join(tmpDir, "in.sam.gz")
	require.NoError(t, ioutil.WriteFile(path, buf.Bytes(), 0644))

	src, err := alignment.Open(context.Background(), path, alignment.DefaultOpts)
	require.NoError(t, err)
	assert.Len(t, scanAll(t, src), 5)
	assert.NoError(t, src.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := alignment.Open(context.Background(), "/nonexistent/in.sam", alignment.DefaultOpts)
	assert.Error(t, err)
}

func TestOpenBAM(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "alignment")
	defer testutil.NoCleanupOnError(t, cleanup, tmpDir)

	ref, err := sam.NewReference("chr1", "", "", 8, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)

	path := filepath.Join(tmpDir, "in.bam")
	out, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out, header, 1)
	require.NoError(t, err)

	// The BAM writer needs a quality string to lay out the aux fields.
	cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)}
	qual := []byte{30, 30, 30, 30}
	fwd, err := sam.NewRecord("fwd", ref, nil, 1, -1, 0, 60, cigar, []byte("CGTA"), qual, nil)
	require.NoError(t, err)
	rev, err := sam.NewRecord("rev", ref, nil, 2, -1, 0, 60, cigar, []byte("GTAC"), qual, nil)
	require.NoError(t, err)
	rev.Flags = sam.Reverse
	unmapped, err := sam.NewRecord("unmapped", nil, nil, -1, -1, 0, 0, nil, []byte("ACGT"), qual, nil)
	require.NoError(t, err)
	unmapped.Flags = sam.Unmapped
	for _, r := range []*sam.Record{fwd, rev, unmapped} {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	src, err := alignment.Open(context.Background(), path, alignment.DefaultOpts)
	require.NoError(t, err)
	assert.Equal(t, []scanned{
		{"fwd", "chr1", false, 1, "CGTA", 1},
		{"rev", "chr1", true, 2, "GTAC", 2},
	}, scanAll(t, src))
	assert.Equal(t, alignment.Counts{Records: 3, Unmapped: 1}, src.Counts())
	assert.NoError(t, src.Close())
}
