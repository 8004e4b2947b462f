// Package types defines the sensor payloads carried inside recording
// envelopes, with their msgpack wire encoding.
package types

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// AccelerationReading is a 3-axis accelerometer sample. Units are m/s²
// for post-SI firmware; milli-g for pre-SI recordings.
type AccelerationReading struct {
	X float32 `msgpack:"x"`
	Y float32 `msgpack:"y"`
	Z float32 `msgpack:"z"`
}

// MagneticFieldReading is a 3-axis magnetometer sample. Units are T for
// post-SI firmware; µT for pre-SI recordings.
type MagneticFieldReading struct {
	X float32 `msgpack:"x"`
	Y float32 `msgpack:"y"`
	Z float32 `msgpack:"z"`
}

// AngularVelocityReading is a 3-axis gyroscope sample in rad/s.
type AngularVelocityReading struct {
	X float32 `msgpack:"x"`
	Y float32 `msgpack:"y"`
	Z float32 `msgpack:"z"`
}

// AltitudeReading is a GNSS altitude sample in meters.
type AltitudeReading struct {
	Altitude float32 `msgpack:"alt"`
}

// GroundSpeedReading is a GNSS ground speed sample in m/s.
type GroundSpeedReading struct {
	GroundSpeed float32 `msgpack:"gs"`
}

// GeodeticHeadingReading is a GNSS heading sample in radians. The device
// emits an exactly-zero heading when it has no fix.
type GeodeticHeadingReading struct {
	Heading float32 `msgpack:"hdg"`
}

// SwitchStateReading reports a digital input transition.
type SwitchStateReading struct {
	State int32 `msgpack:"state"`
}

// DecodePayload unmarshals a typed reading from raw payload bytes.
func DecodePayload[T any](payload []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("decoding %T payload: %w", v, err)
	}
	return v, nil
}

// EncodePayload marshals a typed reading into payload bytes.
func EncodePayload(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T payload: %w", v, err)
	}
	return b, nil
}
