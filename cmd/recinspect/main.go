// recinspect dumps the records of a single recording in human-readable
// form. Useful for eyeballing a recording before and after repair.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/navtrace/recfix/internal/types"
	"github.com/navtrace/recfix/pkg/envelope"
)

func main() {
	in := flag.String("in", "", "Path to a recording file")
	flag.Parse()

	if *in == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -in <recording>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := dump(*in); err != nil {
		fmt.Fprintf(os.Stderr, "recinspect: %v\n", err)
		os.Exit(1)
	}
}

func dump(path string) error {
	rc, err := envelope.OpenFile(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	r := envelope.NewReader(rc)
	for r.Scan() {
		rec := r.Record()
		line, err := format(rec)
		if err != nil {
			return err
		}
		ts := time.Unix(0, rec.Timestamp).UTC().Format(time.RFC3339Nano)
		fmt.Printf("%s %-20s %s\n", ts, rec.Type, line)
	}
	return r.Err()
}

func format(rec envelope.Record) (string, error) {
	switch rec.Type {
	case envelope.TypeAccelerationLegacy, envelope.TypeAcceleration:
		v, err := types.DecodePayload[types.AccelerationReading](rec.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("x=%g y=%g z=%g", v.X, v.Y, v.Z), nil
	case envelope.TypeMagneticField:
		v, err := types.DecodePayload[types.MagneticFieldReading](rec.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("x=%g y=%g z=%g", v.X, v.Y, v.Z), nil
	case envelope.TypeAngularVelocity:
		v, err := types.DecodePayload[types.AngularVelocityReading](rec.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("x=%g y=%g z=%g", v.X, v.Y, v.Z), nil
	case envelope.TypeAltitude:
		v, err := types.DecodePayload[types.AltitudeReading](rec.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("alt=%g", v.Altitude), nil
	case envelope.TypeGroundSpeed:
		v, err := types.DecodePayload[types.GroundSpeedReading](rec.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("speed=%g", v.GroundSpeed), nil
	case envelope.TypeGeodeticHeading:
		v, err := types.DecodePayload[types.GeodeticHeadingReading](rec.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("heading=%g", v.Heading), nil
	case envelope.TypeSwitchState:
		v, err := types.DecodePayload[types.SwitchStateReading](rec.Payload)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("state=%d", v.State), nil
	default:
		return fmt.Sprintf("%d payload bytes", len(rec.Payload)), nil
	}
}
