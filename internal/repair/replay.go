package repair

import (
	"sort"

	"github.com/navtrace/recfix/pkg/envelope"
)

// Source replays the records of a recording in non-decreasing timestamp
// order. Recordings whose classification pass saw no timestamp inversion
// stream straight through; out-of-order recordings (an artifact of
// concurrent sensor capture) are buffered whole and stable-sorted, so
// records with equal timestamps keep their original relative order.
type Source struct {
	r        *envelope.Reader
	streamed bool

	buf    []envelope.Record
	next   int
	err    error
	loaded bool
}

// NewSource wraps a fresh Reader over the same recording the classifier
// consumed. ordered is the classifier's finding for that recording.
func NewSource(r *envelope.Reader, ordered bool) *Source {
	return &Source{r: r, streamed: ordered}
}

// Scan advances to the next record in replay order.
func (s *Source) Scan() bool {
	if s.err != nil {
		return false
	}
	if s.streamed {
		return s.r.Scan()
	}
	if !s.loaded {
		s.load()
		if s.err != nil {
			return false
		}
	}
	if s.next >= len(s.buf) {
		return false
	}
	s.next++
	return true
}

// Record returns the record produced by the last successful Scan.
func (s *Source) Record() envelope.Record {
	if s.streamed {
		return s.r.Record()
	}
	return s.buf[s.next-1]
}

// Err returns the first error encountered, or nil at clean exhaustion.
func (s *Source) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.r.Err()
}

func (s *Source) load() {
	s.loaded = true
	for s.r.Scan() {
		s.buf = append(s.buf, s.r.Record())
	}
	if err := s.r.Err(); err != nil {
		s.err = err
		return
	}
	sort.SliceStable(s.buf, func(i, j int) bool {
		return s.buf[i].Timestamp < s.buf[j].Timestamp
	})
}
