// Package classify implements the first pass over a recording: a streaming
// statistics scan over acceleration samples that determines which firmware
// defects the recording exhibits.
package classify

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/navtrace/recfix/internal/types"
	"github.com/navtrace/recfix/pkg/envelope"
)

// Detection thresholds, fitted against known-good and known-broken
// recordings from the field.
const (
	// A sample-to-sample jump above this on any axis only occurs in
	// recordings made with the broken firmware patch.
	brokenPatchDeltaLimit = 2500.0

	// Mean acceleration magnitude of a mostly-stationary logger is
	// gravity: ~9.8 in m/s², ~1000 in milli-g. A mean in this band means
	// the recording predates the SI-units fix.
	preSIMeanFloor   = 1000.0
	preSIMeanCeiling = 1060.0
)

// Profile holds the defects detected in one recording. It is computed once
// by Scan and is immutable input to the rewrite pass.
type Profile struct {
	PreSIUnits       bool
	FromBrokenPatch  bool
	SwitchStateNoise bool
}

// Fine reports that no defect was found and the recording can be copied
// through untouched.
func (p Profile) Fine() bool {
	return !p.PreSIUnits && !p.FromBrokenPatch && !p.SwitchStateNoise
}

// Result is the outcome of scanning one recording.
type Result struct {
	Profile Profile

	// AccelSamples is the number of standard acceleration records seen.
	AccelSamples uint64

	// Ordered is true when record timestamps never decreased. The rewrite
	// pass only buffers and sorts when this is false.
	Ordered bool
}

// vectorStats accumulates running statistics over 3-axis samples in
// constant memory.
type vectorStats struct {
	n        uint64
	magSum   float64
	prev     [3]float64
	maxDelta [3]float64
}

func (s *vectorStats) add(x, y, z float32) {
	v := [3]float64{float64(x), float64(y), float64(z)}
	s.magSum += floats.Norm(v[:], 2)
	if s.n > 0 {
		for i := range v {
			if d := math.Abs(v[i] - s.prev[i]); d > s.maxDelta[i] {
				s.maxDelta[i] = d
			}
		}
	}
	s.prev = v
	s.n++
}

func (s *vectorStats) anyDeltaAbove(limit float64) bool {
	for _, d := range s.maxDelta {
		if d > limit {
			return true
		}
	}
	return false
}

// Scan consumes the whole record stream and derives the defect profile.
// Records of types other than the standard acceleration reading do not
// influence the profile.
func Scan(r *envelope.Reader) (Result, error) {
	var stats vectorStats
	res := Result{Ordered: true}

	var lastTS int64
	seenAny := false
	for r.Scan() {
		rec := r.Record()
		if seenAny && rec.Timestamp < lastTS {
			res.Ordered = false
		}
		lastTS = rec.Timestamp
		seenAny = true

		if rec.Type != envelope.TypeAcceleration {
			continue
		}
		a, err := types.DecodePayload[types.AccelerationReading](rec.Payload)
		if err != nil {
			return Result{}, err
		}
		stats.add(a.X, a.Y, a.Z)
	}
	if err := r.Err(); err != nil {
		return Result{}, err
	}

	res.AccelSamples = stats.n
	if stats.n == 0 {
		return res, nil
	}

	// The firmware revision that emits the standard acceleration reading
	// is the same one that miscategorizes switch-state data, so presence
	// of these samples is itself the detection signal.
	res.Profile.SwitchStateNoise = true

	// Broken-patch detection takes precedence: its huge jumps would also
	// drag the mean magnitude into the pre-SI band.
	res.Profile.FromBrokenPatch = stats.anyDeltaAbove(brokenPatchDeltaLimit)
	if !res.Profile.FromBrokenPatch {
		mean := stats.magSum / float64(stats.n)
		res.Profile.PreSIUnits = mean > preSIMeanFloor && mean < preSIMeanCeiling
	}
	return res, nil
}
