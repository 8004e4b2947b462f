package repair

import (
	"math"
	"testing"

	"github.com/navtrace/recfix/internal/classify"
	"github.com/navtrace/recfix/internal/types"
	"github.com/navtrace/recfix/pkg/envelope"
)

const epsilon = 1e-4

func record(t *testing.T, typ envelope.RecordType, ts int64, v any) envelope.Record {
	t.Helper()
	payload, err := types.EncodePayload(v)
	if err != nil {
		t.Fatal(err)
	}
	return envelope.Record{Type: typ, Timestamp: ts, Payload: payload}
}

func mustApply(t *testing.T, c *Corrector, rec envelope.Record) (envelope.Record, bool) {
	t.Helper()
	out, emit, err := c.Apply(rec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	return out, emit
}

func decodeAccel(t *testing.T, rec envelope.Record) types.AccelerationReading {
	t.Helper()
	a, err := types.DecodePayload[types.AccelerationReading](rec.Payload)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestPreSIAccelerationConversion(t *testing.T) {
	c := NewCorrector(classify.Profile{PreSIUnits: true})
	in := record(t, envelope.TypeAcceleration, 1, types.AccelerationReading{X: 1000})

	out, emit := mustApply(t, c, in)
	if !emit {
		t.Fatal("acceleration record was dropped")
	}
	a := decodeAccel(t, out)
	if math.Abs(float64(a.X)-9.80665) > epsilon {
		t.Errorf("X = %v, want 9.80665", a.X)
	}
	if a.Y != 0 || a.Z != 0 {
		t.Errorf("zero axes disturbed: %+v", a)
	}
}

func TestPreSIAppliesToLegacyAcceleration(t *testing.T) {
	c := NewCorrector(classify.Profile{PreSIUnits: true})
	in := record(t, envelope.TypeAccelerationLegacy, 1, types.AccelerationReading{Z: 1000})

	out, emit := mustApply(t, c, in)
	if !emit {
		t.Fatal("legacy acceleration record was dropped")
	}
	if a := decodeAccel(t, out); math.Abs(float64(a.Z)-9.80665) > epsilon {
		t.Errorf("Z = %v, want 9.80665", a.Z)
	}
}

func TestBrokenPatchOffsetRemoval(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want float64
	}{
		{"above floor is unshifted", 1300.0, 1300.0 - 2512.874},
		{"below floor untouched", 1200.0, 1200.0},
		{"each axis independent", 1251.0, 1251.0 - 2512.874},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCorrector(classify.Profile{FromBrokenPatch: true})
			out, emit := mustApply(t, c, record(t, envelope.TypeAcceleration, 1,
				types.AccelerationReading{X: tt.in}))
			if !emit {
				t.Fatal("record dropped")
			}
			if a := decodeAccel(t, out); math.Abs(float64(a.X)-tt.want) > 1e-3 {
				t.Errorf("X = %v, want %v", a.X, tt.want)
			}
		})
	}
}

func TestMagneticFieldDedupAnyAxis(t *testing.T) {
	c := NewCorrector(classify.Profile{})
	first := record(t, envelope.TypeMagneticField, 1, types.MagneticFieldReading{X: 1.5, Y: 2.0, Z: 3.0})
	// Same X bits, different Y/Z: still a duplicate frame.
	second := record(t, envelope.TypeMagneticField, 2, types.MagneticFieldReading{X: 1.5, Y: 9.0, Z: 9.0})
	third := record(t, envelope.TypeMagneticField, 3, types.MagneticFieldReading{X: 4.0, Y: 5.0, Z: 6.0})

	if _, emit := mustApply(t, c, first); !emit {
		t.Fatal("first magnetic record dropped")
	}
	if _, emit := mustApply(t, c, second); emit {
		t.Error("repeated-X frame not dropped")
	}
	if _, emit := mustApply(t, c, third); !emit {
		t.Error("fresh frame dropped")
	}
	if got := c.Counts()[envelope.TypeMagneticField].Duplicates; got != 1 {
		t.Errorf("duplicate counter = %d, want 1", got)
	}
}

func TestMagneticFieldPreSIConversion(t *testing.T) {
	c := NewCorrector(classify.Profile{PreSIUnits: true})
	out, emit := mustApply(t, c, record(t, envelope.TypeMagneticField, 1,
		types.MagneticFieldReading{X: 50.0}))
	if !emit {
		t.Fatal("record dropped")
	}
	m, err := types.DecodePayload[types.MagneticFieldReading](out.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(m.X)-50.0e-6) > 1e-9 {
		t.Errorf("X = %v, want 5e-05", m.X)
	}
}

func TestMagneticFieldBrokenPatchOffset(t *testing.T) {
	c := NewCorrector(classify.Profile{FromBrokenPatch: true})
	out, emit := mustApply(t, c, record(t, envelope.TypeMagneticField, 1,
		types.MagneticFieldReading{X: 0.03, Y: 0.005}))
	if !emit {
		t.Fatal("record dropped")
	}
	m, err := types.DecodePayload[types.MagneticFieldReading](out.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(m.X)-(0.03-0.0196605)) > 1e-6 {
		t.Errorf("X = %v, want %v", m.X, 0.03-0.0196605)
	}
	if math.Abs(float64(m.Y)-0.005) > 1e-9 {
		t.Errorf("Y below floor was shifted: %v", m.Y)
	}
}

func TestAngularVelocityDedupNoCorrection(t *testing.T) {
	c := NewCorrector(classify.Profile{PreSIUnits: true})
	first := record(t, envelope.TypeAngularVelocity, 1, types.AngularVelocityReading{X: 0.5, Y: 0.1, Z: 0.2})

	out, emit := mustApply(t, c, first)
	if !emit {
		t.Fatal("first gyro record dropped")
	}
	g, err := types.DecodePayload[types.AngularVelocityReading](out.Payload)
	if err != nil {
		t.Fatal(err)
	}
	// Gyro values are already in rad/s; no unit correction applies.
	if g.X != 0.5 || g.Y != 0.1 || g.Z != 0.2 {
		t.Errorf("gyro values altered: %+v", g)
	}

	if _, emit := mustApply(t, c, first); emit {
		t.Error("duplicate gyro frame not dropped")
	}
}

func TestScalarDedupAndDropout(t *testing.T) {
	for _, typ := range []envelope.RecordType{envelope.TypeAltitude, envelope.TypeGroundSpeed} {
		t.Run(typ.String(), func(t *testing.T) {
			c := NewCorrector(classify.Profile{})
			sample := func(ts int64, v float32) envelope.Record {
				if typ == envelope.TypeAltitude {
					return record(t, typ, ts, types.AltitudeReading{Altitude: v})
				}
				return record(t, typ, ts, types.GroundSpeedReading{GroundSpeed: v})
			}

			if _, emit := mustApply(t, c, sample(1, 100.0)); !emit {
				t.Fatal("first sample dropped")
			}
			if _, emit := mustApply(t, c, sample(2, 100.0)); emit {
				t.Error("bit-identical sample not dropped")
			}
			// 100 → 1 collapses by more than 98% of the previous value.
			if _, emit := mustApply(t, c, sample(3, 1.0)); emit {
				t.Error("near-total dropout not dropped")
			}
			// 100 → 90 is a plausible real change.
			if _, emit := mustApply(t, c, sample(4, 90.0)); !emit {
				t.Error("plausible sample dropped")
			}

			counts := c.Counts()[typ]
			if counts.Duplicates != 1 || counts.Dropouts != 1 {
				t.Errorf("counts = %+v, want 1 duplicate and 1 dropout", counts)
			}
		})
	}
}

func TestHeadingSentinelDroppedBeforeDedup(t *testing.T) {
	c := NewCorrector(classify.Profile{})
	sentinel := record(t, envelope.TypeGeodeticHeading, 1, types.GeodeticHeadingReading{Heading: 0.0005})

	if _, emit := mustApply(t, c, sentinel); emit {
		t.Error("zero-heading sentinel emitted")
	}
	// The sentinel must not have become the dedup baseline.
	if _, emit := mustApply(t, c, record(t, envelope.TypeGeodeticHeading, 2,
		types.GeodeticHeadingReading{Heading: 1.25})); !emit {
		t.Error("valid heading dropped after sentinel")
	}
	if _, emit := mustApply(t, c, sentinel); emit {
		t.Error("sentinel emitted regardless of dedup state")
	}

	counts := c.Counts()[envelope.TypeGeodeticHeading]
	if counts.Sentinels != 2 {
		t.Errorf("sentinel counter = %d, want 2", counts.Sentinels)
	}
}

func TestSwitchStateNoiseDrop(t *testing.T) {
	rec := record(t, envelope.TypeSwitchState, 1, types.SwitchStateReading{State: 1})

	noisy := NewCorrector(classify.Profile{SwitchStateNoise: true})
	if _, emit := mustApply(t, noisy, rec); emit {
		t.Error("switch-state noise emitted")
	}
	if noisy.SwitchStateDropped() != 1 {
		t.Errorf("switch drop counter = %d, want 1", noisy.SwitchStateDropped())
	}

	clean := NewCorrector(classify.Profile{})
	out, emit := mustApply(t, clean, rec)
	if !emit {
		t.Error("switch-state record dropped without noise finding")
	}
	if &out.Payload[0] != &rec.Payload[0] {
		t.Error("clean switch-state record was re-encoded, expected passthrough")
	}
}

func TestUnknownTypePassthrough(t *testing.T) {
	c := NewCorrector(classify.Profile{PreSIUnits: true, SwitchStateNoise: true})
	rec := envelope.Record{Type: envelope.RecordType(31337), Timestamp: 9, Payload: []byte("do not touch")}

	out, emit := mustApply(t, c, rec)
	if !emit {
		t.Fatal("unknown record dropped")
	}
	if string(out.Payload) != "do not touch" || out.Timestamp != 9 {
		t.Errorf("unknown record modified: %+v", out)
	}
}
