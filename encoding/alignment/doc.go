// Package alignment reads SAM and BAM alignment records and expands each
// record into its aligned pairs: the (query position, reference position)
// correspondence for every base of the alignment footprint.
//
// Source is a single-pass iterator over the mapped records of one input.
// Structurally invalid SAM lines are reported as MalformedAlignmentError,
// logged, counted and skipped; they never stop the iteration.
//
// PairScanner walks a record's CIGAR in lock-step along the query and the
// reference.  Insertions and soft clips yield pairs with an undefined
// reference position, deletions and skips yield pairs with an undefined query
// position, and hard clips and padding yield nothing.
package alignment
