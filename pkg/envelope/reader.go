package envelope

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrCorruptFrame is returned when a frame cannot be decoded. A recording
// that fails mid-stream is considered unreadable; there is no resync.
var ErrCorruptFrame = errors.New("envelope: corrupt frame")

// maxFrameSize bounds a single frame so a corrupt length prefix cannot
// trigger an enormous allocation.
const maxFrameSize = 16 << 20

// Field numbers of the frame body.
const (
	fieldType      = 1
	fieldTimestamp = 2
	fieldPayload   = 3
)

// Reader decodes records from a byte stream. Usage follows bufio.Scanner:
//
//	r := envelope.NewReader(f)
//	for r.Scan() {
//		rec := r.Record()
//		...
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	br  *bufio.Reader
	rec Record
	err error
}

// NewReader returns a Reader consuming from r with buffered sequential I/O.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Scan advances to the next record. It returns false at clean end of
// stream or on error; the two are distinguished via Err.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}

	size, err := readUvarint(r.br)
	if err == io.EOF {
		return false
	}
	if err != nil {
		r.err = fmt.Errorf("%w: reading frame length: %v", ErrCorruptFrame, err)
		return false
	}
	if size > maxFrameSize {
		r.err = fmt.Errorf("%w: frame length %d exceeds limit", ErrCorruptFrame, size)
		return false
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r.br, body); err != nil {
		r.err = fmt.Errorf("%w: truncated frame: %v", ErrCorruptFrame, err)
		return false
	}

	rec, err := unmarshalBody(body)
	if err != nil {
		r.err = err
		return false
	}
	r.rec = rec
	return true
}

// Record returns the record produced by the last successful Scan. The
// payload references a freshly allocated buffer, so it stays valid across
// subsequent Scans and may be retained.
func (r *Reader) Record() Record {
	return r.rec
}

// Err returns the first error encountered, or nil on clean end of stream.
func (r *Reader) Err() error {
	return r.err
}

func unmarshalBody(body []byte) (Record, error) {
	var rec Record
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: bad field tag", ErrCorruptFrame)
		}
		body = body[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: bad type field", ErrCorruptFrame)
			}
			rec.Type = RecordType(v)
			body = body[n:]
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: bad timestamp field", ErrCorruptFrame)
			}
			rec.Timestamp = int64(v)
			body = body[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: bad payload field", ErrCorruptFrame)
			}
			rec.Payload = v
			body = body[n:]
		default:
			// Skip fields added by newer writers.
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: bad field %d", ErrCorruptFrame, num)
			}
			body = body[n:]
		}
	}
	return rec, nil
}

// readUvarint reads the frame length prefix. It returns io.EOF only
// when the stream ends exactly on a frame boundary; a partial varint is a
// framing error.
func readUvarint(br *bufio.Reader) (uint64, error) {
	var x uint64
	var s uint
	for i := 0; ; i++ {
		b, err := br.ReadByte()
		if err != nil {
			if i == 0 && err == io.EOF {
				return 0, io.EOF
			}
			return 0, io.ErrUnexpectedEOF
		}
		if b < 0x80 {
			if i > 9 || i == 9 && b > 1 {
				return 0, errors.New("varint overflow")
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}
