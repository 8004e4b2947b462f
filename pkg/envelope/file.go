package envelope

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedSuffix marks recordings stored zstd-compressed. Archived
// recordings are often compressed at rest; the envelope layer handles the
// transport transparently.
const CompressedSuffix = ".zst"

// IsCompressed reports whether path names a zstd-compressed recording.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}

type decompressingReader struct {
	dec  *zstd.Decoder
	file *os.File
}

func (r *decompressingReader) Read(p []byte) (int, error) { return r.dec.Read(p) }

func (r *decompressingReader) Close() error {
	r.dec.Close()
	return r.file.Close()
}

type compressingWriter struct {
	enc  *zstd.Encoder
	file *os.File
}

func (w *compressingWriter) Write(p []byte) (int, error) { return w.enc.Write(p) }

func (w *compressingWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// OpenFile opens a recording for sequential reading, transparently
// decompressing when the path carries the compressed suffix.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
	}
	return &decompressingReader{dec: dec, file: f}, nil
}

// CreateFile creates a recording for sequential writing, compressing when
// the path carries the compressed suffix. The file is created exclusively;
// an existing file is an error.
func CreateFile(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(path) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd stream %s: %w", path, err)
	}
	return &compressingWriter{enc: enc, file: f}, nil
}
