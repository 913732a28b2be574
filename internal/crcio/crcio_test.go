package crcio

import (
	"bytes"
	"hash/crc32"
	"testing"
)

func TestReaderEmpty(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	if r.CRC32() != 0 {
		t.Fatalf("CRC32() of empty reader = %x, want 0", r.CRC32())
	}
}

func TestReaderProgressive(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("ab")))

	b, err := r.ReadByte()
	if err != nil || b != 'a' {
		t.Fatalf("ReadByte() = %c, %v", b, err)
	}
	if r.CRC32() != crc32.ChecksumIEEE([]byte("a")) {
		t.Fatalf("CRC32() after 'a' = %x, want %x", r.CRC32(), crc32.ChecksumIEEE([]byte("a")))
	}

	b, err = r.ReadByte()
	if err != nil || b != 'b' {
		t.Fatalf("ReadByte() = %c, %v", b, err)
	}
	if r.CRC32() != crc32.ChecksumIEEE([]byte("ab")) {
		t.Fatalf("CRC32() after 'ab' = %x, want %x", r.CRC32(), crc32.ChecksumIEEE([]byte("ab")))
	}
}

func TestReaderSeekProhibited(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("abc")))
	if _, err := r.Seek(0, 0); err != ErrUnsupportedOperation {
		t.Fatalf("Seek() = %v, want ErrUnsupportedOperation", err)
	}
}

func TestWriterProgressive(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Write([]byte("a"))
	if w.CRC32() != crc32.ChecksumIEEE([]byte("a")) {
		t.Fatalf("CRC32() after 'a' = %x", w.CRC32())
	}

	w.Write([]byte("b"))
	if w.CRC32() != crc32.ChecksumIEEE([]byte("ab")) {
		t.Fatalf("CRC32() after 'ab' = %x", w.CRC32())
	}
	if !bytes.Equal(w.Bytes(), []byte("ab")) {
		t.Fatalf("Bytes() = %q, want %q", w.Bytes(), "ab")
	}
	if !bytes.Equal(buf.Bytes(), []byte("ab")) {
		t.Fatalf("underlying writer got %q, want %q", buf.Bytes(), "ab")
	}
}

func TestWriterTruncateToCurrentPos(t *testing.T) {
	w := NewWriter(nil)
	w.Write([]byte("abc"))
	if err := w.Truncate(len(w.Bytes())); err != nil {
		t.Fatalf("Truncate(current): %v", err)
	}
	if !bytes.Equal(w.Bytes(), []byte("abc")) {
		t.Fatalf("Bytes() = %q after no-op truncate", w.Bytes())
	}
}

func TestWriterTruncateToZero(t *testing.T) {
	w := NewWriter(nil)
	w.Write([]byte("abc"))
	if err := w.Truncate(0); err != nil {
		t.Fatalf("Truncate(0): %v", err)
	}
	if len(w.Bytes()) != 0 {
		t.Fatalf("Bytes() = %q, want empty", w.Bytes())
	}
	if w.CRC32() != 0 {
		t.Fatalf("CRC32() = %x, want 0 after truncate", w.CRC32())
	}
}

func TestWriterTruncateToOtherProhibited(t *testing.T) {
	w := NewWriter(nil)
	w.Write([]byte("abc"))
	if err := w.Truncate(1); err != ErrUnsupportedOperation {
		t.Fatalf("Truncate(1) = %v, want ErrUnsupportedOperation", err)
	}
}

func TestWriterSeekProhibited(t *testing.T) {
	w := NewWriter(nil)
	if _, err := w.Seek(0, 0); err != ErrUnsupportedOperation {
		t.Fatalf("Seek() = %v, want ErrUnsupportedOperation", err)
	}
}
