package envelope

import (
	"bufio"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal serializes a record into a single length-prefixed frame.
func Marshal(rec Record) []byte {
	var body []byte
	body = protowire.AppendTag(body, fieldType, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(rec.Type))
	body = protowire.AppendTag(body, fieldTimestamp, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(rec.Timestamp))
	body = protowire.AppendTag(body, fieldPayload, protowire.BytesType)
	body = protowire.AppendBytes(body, rec.Payload)

	frame := protowire.AppendVarint(nil, uint64(len(body)))
	return append(frame, body...)
}

// Writer serializes records to a byte stream.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter returns a Writer emitting to w with buffered sequential I/O.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 64*1024)}
}

// WriteRecord appends one framed record to the stream.
func (w *Writer) WriteRecord(rec Record) error {
	if _, err := w.bw.Write(Marshal(rec)); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// Flush drains the write buffer. Must be called before closing the
// underlying stream.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}
