package alignment

// PairScanner yields the aligned pairs of a record in reference order without
// allocating.  Thread compatible.
//
// Usage:
//
//   s := alignment.NewPairScanner(rec)
//   for s.Scan() {
//     p := s.Pair()
//     ...
//   }
type PairScanner struct {
	rec   *Record
	op    int // index into rec.Cigar of the current operation
	done  int // bases of the current operation already yielded
	query int
	ref   int
	pair  AlignedPair
}

// NewPairScanner creates a scanner positioned before the first pair of rec.
func NewPairScanner(rec *Record) *PairScanner {
	s := &PairScanner{}
	s.Reset(rec)
	return s
}

// Reset repositions the scanner before the first pair of rec.
func (s *PairScanner) Reset(rec *Record) {
	*s = PairScanner{rec: rec, ref: rec.Pos}
}

// Scan advances to the next pair.  It returns false once the CIGAR is
// exhausted.
func (s *PairScanner) Scan() bool {
	cigar := s.rec.Cigar
	for s.op < len(cigar) {
		co := cigar[s.op]
		if s.done >= co.Len() {
			s.op++
			s.done = 0
			continue
		}
		con := co.Type().Consumes()
		switch {
		case con.Query > 0 && con.Reference > 0: // M, =, X
			s.pair = AlignedPair{Query: s.query, Ref: s.ref}
			s.query++
			s.ref++
		case con.Query > 0: // I, S
			s.pair = AlignedPair{Query: s.query, Ref: Undefined}
			s.query++
		case con.Reference > 0: // D, N
			s.pair = AlignedPair{Query: Undefined, Ref: s.ref}
			s.ref++
		default: // H, P
			s.op++
			s.done = 0
			continue
		}
		s.done++
		return true
	}
	return false
}

// Pair returns the current pair.  REQUIRES: the last call to Scan returned
// true.
func (s *PairScanner) Pair() AlignedPair { return s.pair }

// AlignedPairs returns every aligned pair of rec, in reference order.
func AlignedPairs(rec *Record) []AlignedPair {
	var pairs []AlignedPair
	s := NewPairScanner(rec)
	for s.Scan() {
		pairs = append(pairs, s.Pair())
	}
	return pairs
}

// RefSpan returns the half-open reference interval [start, end) covered by
// rec's alignment.
func RefSpan(rec *Record) (start, end int) {
	end = rec.Pos
	for _, co := range rec.Cigar {
		if co.Type().Consumes().Reference > 0 {
			end += co.Len()
		}
	}
	return rec.Pos, end
}

// QueryLen returns the number of query bases consumed by rec's CIGAR.  For a
// well-formed record with a sequence, it equals len(rec.Seq).
func QueryLen(rec *Record) int {
	n := 0
	for _, co := range rec.Cigar {
		if co.Type().Consumes().Query > 0 {
			n += co.Len()
		}
	}
	return n
}
