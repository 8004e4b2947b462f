// Package envelope implements the container format used by navtrace
// recording files: a sequence of length-prefixed frames, each carrying a
// record type tag, a capture timestamp, and an opaque payload blob.
//
// The envelope layer knows nothing about payload schemas; see the types
// package for the typed readings carried inside the payloads.
package envelope

import "fmt"

// RecordType identifies the payload schema carried by a record.
type RecordType uint32

const (
	TypeUnknown RecordType = 0

	// TypeAccelerationLegacy is the device-native acceleration reading
	// emitted by firmware revisions that predate the standard reading.
	TypeAccelerationLegacy RecordType = 1101

	TypeAcceleration    RecordType = 1030
	TypeMagneticField   RecordType = 1031
	TypeAngularVelocity RecordType = 1032
	TypeAltitude        RecordType = 1038
	TypeSwitchState     RecordType = 1040
	TypeGeodeticHeading RecordType = 1045
	TypeGroundSpeed     RecordType = 1046
)

func (t RecordType) String() string {
	switch t {
	case TypeAccelerationLegacy:
		return "acceleration-legacy"
	case TypeAcceleration:
		return "acceleration"
	case TypeMagneticField:
		return "magnetic-field"
	case TypeAngularVelocity:
		return "angular-velocity"
	case TypeAltitude:
		return "altitude"
	case TypeSwitchState:
		return "switch-state"
	case TypeGeodeticHeading:
		return "geodetic-heading"
	case TypeGroundSpeed:
		return "ground-speed"
	default:
		return fmt.Sprintf("type-%d", uint32(t))
	}
}

// Record is a single unit of a recording: type tag, capture timestamp in
// nanoseconds, and the serialized payload. The timestamp is monotonic per
// sensor but records from concurrently captured sensors may appear out of
// order in the file.
type Record struct {
	Type      RecordType
	Timestamp int64
	Payload   []byte
}
