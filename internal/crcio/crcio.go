// Package crcio wraps byte readers and writers with a running IEEE CRC32,
// in the style of internal/bzip2's crc type (this package's CRC is plain
// IEEE byte order, unlike bzip2's bit-reversed variant, since blip's CRC32
// is the ordinary one used by zip/gzip).
package crcio

import (
	"errors"
	"hash/crc32"
	"io"
)

// ErrUnsupportedOperation is returned by Seek, and by Truncate when asked to
// truncate to anything other than zero or the current length.
var ErrUnsupportedOperation = errors.New("crcio: unsupported operation")

// Reader wraps an io.Reader, maintaining a running CRC32 of every byte that
// has been read through it.
type Reader struct {
	r   io.Reader
	crc uint32
	n   int64
}

// NewReader returns a Reader wrapping r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read implements io.Reader.
func (cr *Reader) Read(buf []byte) (int, error) {
	n, err := cr.r.Read(buf)
	if n > 0 {
		cr.crc = crc32.Update(cr.crc, crc32.IEEETable, buf[:n])
		cr.n += int64(n)
	}
	return n, err
}

// ReadByte implements io.ByteReader, so a Reader can be handed directly to
// varint.Decode.
func (cr *Reader) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(cr, b[:])
	return b[0], err
}

// CRC32 returns the running CRC32 of all bytes read so far.
func (cr *Reader) CRC32() uint32 {
	return cr.crc
}

// Len returns the number of bytes read so far.
func (cr *Reader) Len() int64 {
	return cr.n
}

// Seek always fails: blip patches are consumed strictly forwards.
func (cr *Reader) Seek(int64, int) (int64, error) {
	return 0, ErrUnsupportedOperation
}

// Writer wraps an io.Writer, maintaining a running CRC32 of every byte
// written through it and, like Python's BytesIO-backed CRCIOWrapper, the
// full buffer of bytes written so far (retrievable with Bytes).
type Writer struct {
	w   io.Writer
	buf []byte
	crc uint32
}

// NewWriter returns a Writer wrapping w. w may be nil, in which case the
// Writer only accumulates Bytes() and the CRC, as EncodeBinary uses it to
// build a patch in memory.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write implements io.Writer.
func (cw *Writer) Write(p []byte) (int, error) {
	cw.crc = crc32.Update(cw.crc, crc32.IEEETable, p)
	cw.buf = append(cw.buf, p...)
	if cw.w == nil {
		return len(p), nil
	}
	return cw.w.Write(p)
}

// CRC32 returns the running CRC32 of all bytes written so far.
func (cw *Writer) CRC32() uint32 {
	return cw.crc
}

// Bytes returns every byte written so far.
func (cw *Writer) Bytes() []byte {
	return cw.buf
}

// Truncate resets the writer's accumulated state, and only accepts
// truncating to zero (reset) or to the current length (no-op); any other
// length is rejected, mirroring the Python CRCIOWrapper's truncate().
func (cw *Writer) Truncate(n int) error {
	switch {
	case n == len(cw.buf):
		return nil
	case n == 0:
		cw.buf = cw.buf[:0]
		cw.crc = 0
		return nil
	default:
		return ErrUnsupportedOperation
	}
}

// Seek always fails: blip patches are produced strictly forwards.
func (cw *Writer) Seek(int64, int) (int64, error) {
	return 0, ErrUnsupportedOperation
}
