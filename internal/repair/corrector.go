// Package repair implements the second pass over a recording: replaying
// records in timestamp order and applying the per-type corrections chosen
// by the classification pass.
package repair

import (
	"math"

	"github.com/navtrace/recfix/internal/classify"
	"github.com/navtrace/recfix/internal/types"
	"github.com/navtrace/recfix/pkg/envelope"
)

// Calibration constants for the known firmware defects.
const (
	// Pre-SI firmware reported acceleration in milli-g and magnetic
	// field in microtesla.
	milliGToMps2      = 9.80665 / 1000.0
	microteslaToTesla = 1e-6

	// The broken patch added a constant offset to affected samples.
	// Offsets and floors were measured from field recordings.
	brokenAccelFloor  = 1250.0
	brokenAccelOffset = 2512.874
	brokenMagFloor    = 0.01
	brokenMagOffset   = 0.0196605

	// Headings this close to zero are the no-fix sentinel, not a bearing.
	headingSentinelLimit = 0.001
)

// DropCounts reports why records of one type were suppressed.
type DropCounts struct {
	Duplicates uint64
	Dropouts   uint64
	Sentinels  uint64
}

// Corrector rewrites or suppresses individual records according to an
// immutable defect profile. One Corrector serves exactly one recording;
// dedup state must not leak across files.
type Corrector struct {
	profile       classify.Profile
	dedup         map[envelope.RecordType]*dedupState
	switchDropped uint64
}

// NewCorrector returns a Corrector for one recording.
func NewCorrector(profile classify.Profile) *Corrector {
	return &Corrector{
		profile: profile,
		dedup: map[envelope.RecordType]*dedupState{
			envelope.TypeMagneticField:   {},
			envelope.TypeAngularVelocity: {},
			envelope.TypeAltitude:        {},
			envelope.TypeGroundSpeed:     {},
			envelope.TypeGeodeticHeading: {},
		},
	}
}

// Apply corrects a single record. It returns the record to emit and true,
// or a zero record and false when the record is suppressed. Records of
// unknown types pass through byte-for-byte.
func (c *Corrector) Apply(rec envelope.Record) (envelope.Record, bool, error) {
	switch rec.Type {
	case envelope.TypeSwitchState:
		if c.profile.SwitchStateNoise {
			c.switchDropped++
			return envelope.Record{}, false, nil
		}
		return rec, true, nil

	case envelope.TypeAccelerationLegacy, envelope.TypeAcceleration:
		return c.applyAcceleration(rec)

	case envelope.TypeMagneticField:
		return c.applyMagneticField(rec)

	case envelope.TypeAngularVelocity:
		return c.applyAngularVelocity(rec)

	case envelope.TypeAltitude:
		return c.applyAltitude(rec)

	case envelope.TypeGroundSpeed:
		return c.applyGroundSpeed(rec)

	case envelope.TypeGeodeticHeading:
		return c.applyHeading(rec)

	default:
		return rec, true, nil
	}
}

func (c *Corrector) applyAcceleration(rec envelope.Record) (envelope.Record, bool, error) {
	a, err := types.DecodePayload[types.AccelerationReading](rec.Payload)
	if err != nil {
		return envelope.Record{}, false, err
	}
	if c.profile.PreSIUnits {
		a.X *= milliGToMps2
		a.Y *= milliGToMps2
		a.Z *= milliGToMps2
	}
	if c.profile.FromBrokenPatch {
		a.X = unshiftBroken(a.X, brokenAccelFloor, brokenAccelOffset)
		a.Y = unshiftBroken(a.Y, brokenAccelFloor, brokenAccelOffset)
		a.Z = unshiftBroken(a.Z, brokenAccelFloor, brokenAccelOffset)
	}
	return c.reencode(rec, a)
}

func (c *Corrector) applyMagneticField(rec envelope.Record) (envelope.Record, bool, error) {
	m, err := types.DecodePayload[types.MagneticFieldReading](rec.Payload)
	if err != nil {
		return envelope.Record{}, false, err
	}
	if !c.dedup[envelope.TypeMagneticField].admitVector([3]float32{m.X, m.Y, m.Z}) {
		return envelope.Record{}, false, nil
	}
	if c.profile.PreSIUnits {
		m.X *= microteslaToTesla
		m.Y *= microteslaToTesla
		m.Z *= microteslaToTesla
	}
	if c.profile.FromBrokenPatch {
		m.X = unshiftBroken(m.X, brokenMagFloor, brokenMagOffset)
		m.Y = unshiftBroken(m.Y, brokenMagFloor, brokenMagOffset)
		m.Z = unshiftBroken(m.Z, brokenMagFloor, brokenMagOffset)
	}
	return c.reencode(rec, m)
}

func (c *Corrector) applyAngularVelocity(rec envelope.Record) (envelope.Record, bool, error) {
	g, err := types.DecodePayload[types.AngularVelocityReading](rec.Payload)
	if err != nil {
		return envelope.Record{}, false, err
	}
	if !c.dedup[envelope.TypeAngularVelocity].admitVector([3]float32{g.X, g.Y, g.Z}) {
		return envelope.Record{}, false, nil
	}
	// No value correction applies, but re-encoding normalizes payloads
	// written by older encoder revisions.
	return c.reencode(rec, g)
}

func (c *Corrector) applyAltitude(rec envelope.Record) (envelope.Record, bool, error) {
	a, err := types.DecodePayload[types.AltitudeReading](rec.Payload)
	if err != nil {
		return envelope.Record{}, false, err
	}
	if !c.dedup[envelope.TypeAltitude].admitScalar(a.Altitude) {
		return envelope.Record{}, false, nil
	}
	return c.reencode(rec, a)
}

func (c *Corrector) applyGroundSpeed(rec envelope.Record) (envelope.Record, bool, error) {
	s, err := types.DecodePayload[types.GroundSpeedReading](rec.Payload)
	if err != nil {
		return envelope.Record{}, false, err
	}
	if !c.dedup[envelope.TypeGroundSpeed].admitScalar(s.GroundSpeed) {
		return envelope.Record{}, false, nil
	}
	return c.reencode(rec, s)
}

func (c *Corrector) applyHeading(rec envelope.Record) (envelope.Record, bool, error) {
	h, err := types.DecodePayload[types.GeodeticHeadingReading](rec.Payload)
	if err != nil {
		return envelope.Record{}, false, err
	}
	st := c.dedup[envelope.TypeGeodeticHeading]
	// Sentinel check comes before dedup so a no-fix reading never becomes
	// the comparison baseline.
	if math.Abs(float64(h.Heading)) < headingSentinelLimit {
		st.sentinels++
		return envelope.Record{}, false, nil
	}
	if !st.admitScalar(h.Heading) {
		return envelope.Record{}, false, nil
	}
	return c.reencode(rec, h)
}

func (c *Corrector) reencode(rec envelope.Record, v any) (envelope.Record, bool, error) {
	payload, err := types.EncodePayload(v)
	if err != nil {
		return envelope.Record{}, false, err
	}
	rec.Payload = payload
	return rec, true, nil
}

// unshiftBroken removes the broken patch's additive offset from values it
// affected; values below the floor were not shifted by the patch.
func unshiftBroken(v float32, floor, offset float64) float32 {
	if float64(v) > floor {
		return float32(float64(v) - offset)
	}
	return v
}

// Counts returns per-type drop counters for diagnostics.
func (c *Corrector) Counts() map[envelope.RecordType]DropCounts {
	out := make(map[envelope.RecordType]DropCounts, len(c.dedup))
	for t, st := range c.dedup {
		out[t] = DropCounts{
			Duplicates: st.duplicates,
			Dropouts:   st.dropouts,
			Sentinels:  st.sentinels,
		}
	}
	return out
}

// SwitchStateDropped returns how many switch-state records were suppressed
// as firmware noise.
func (c *Corrector) SwitchStateDropped() uint64 {
	return c.switchDropped
}

// TotalDropped sums every suppressed record for the summary line.
func (c *Corrector) TotalDropped() uint64 {
	total := c.switchDropped
	for _, st := range c.dedup {
		total += st.duplicates + st.dropouts + st.sentinels
	}
	return total
}
