package repair

import "math"

// dedupState tracks the last admitted value for one deduplicated record
// type, plus independent counters for the two drop causes. Duplicate
// frames are a firmware artifact; near-total dropouts on scalar channels
// are spurious readings, not physics. The two are reported separately.
type dedupState struct {
	seen       bool
	last       [3]float32
	duplicates uint64
	dropouts   uint64
	sentinels  uint64
}

// bitsEqual compares two samples for bit-exact equality. Tolerance-based
// comparison would also suppress legitimate slow-moving signals; the
// firmware artifact repeats frames verbatim, so only an exact match counts.
func bitsEqual(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}

// admitVector decides whether a 3-axis sample passes dedup. A repeat of
// any single axis marks the whole frame as a duplicate.
func (st *dedupState) admitVector(v [3]float32) bool {
	if st.seen {
		for i := range v {
			if bitsEqual(v[i], st.last[i]) {
				st.duplicates++
				return false
			}
		}
	}
	st.seen = true
	st.last = v
	return true
}

// dropoutRatio flags a scalar reading that collapses to near zero relative
// to its predecessor.
const dropoutRatio = 0.98

// admitScalar decides whether a scalar sample passes dedup and the
// dropout heuristic. Dropped samples do not update the state.
func (st *dedupState) admitScalar(v float32) bool {
	if st.seen {
		if bitsEqual(v, st.last[0]) {
			st.duplicates++
			return false
		}
		prev := float64(st.last[0])
		if prev-float64(v) > dropoutRatio*math.Abs(prev) {
			st.dropouts++
			return false
		}
	}
	st.seen = true
	st.last[0] = v
	return true
}
