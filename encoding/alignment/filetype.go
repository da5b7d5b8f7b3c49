package alignment

import (
	"strings"

	"v.io/x/lib/vlog"
)

// FileType represents the encoding of an alignment input.
type FileType int

const (
	// Unknown is a sentinel.  Sources treat it as SAM.
	Unknown FileType = iota
	// SAM text, optionally gzip, bgzf, bzip2 or zstd compressed.
	SAM
	// BAM file
	BAM
)

// String implements fmt.Stringer.
func (t FileType) String() string {
	switch t {
	case SAM:
		return "sam"
	case BAM:
		return "bam"
	default:
		return "unknown"
	}
}

// ParseFileType parses the file type string. "bam" returns alignment.BAM, for
// example. On error, or for "auto", it returns Unknown.
func ParseFileType(name string) FileType {
	switch strings.ToLower(name) {
	case "sam":
		return SAM
	case "bam":
		return BAM
	default:
		return Unknown
	}
}

// GuessFileType returns the file type from the pathname. Returns Unknown if
// the name is not conclusive.
func GuessFileType(path string) FileType {
	if path == "-" {
		return SAM
	}
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".bam") {
		return BAM
	}
	for _, ext := range []string{".gz", ".bgz", ".bz2", ".zst"} {
		lower = strings.TrimSuffix(lower, ext)
	}
	if strings.HasSuffix(lower, ".sam") {
		return SAM
	}
	vlog.VI(1).Infof("%v: could not detect file type.", path)
	return Unknown
}
