package blip

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/blipfmt/bps/internal/ops"
)

// TextDecoder reads the line-oriented "blip-asm" textual form and emits it
// as an OpSource, the textual counterpart of Decoder. It shares the same
// decode-then-validate split: TextDecoder only enforces what the grammar
// itself implies (well-formed lines, valid hex, valid decimal); wrap it in
// a Validator for full invariant checking.
type TextDecoder struct {
	sc *bufio.Scanner

	stage      decodeStage
	targetSize int64
	written    int64

	op  ops.Operation
	err error
}

// NewTextDecoder returns a TextDecoder reading blip-asm text from r.
func NewTextDecoder(r io.Reader) *TextDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
	return &TextDecoder{sc: sc}
}

func (t *TextDecoder) Op() ops.Operation { return t.op }
func (t *TextDecoder) Err() error        { return t.err }

func (t *TextDecoder) fail(err error) bool {
	t.err = err
	return false
}

func (t *TextDecoder) nextLine() (string, bool) {
	if !t.sc.Scan() {
		return "", false
	}
	return t.sc.Text(), true
}

func (t *TextDecoder) Scan(ctx context.Context) bool {
	if t.err != nil || t.stage == decodeStageDone {
		return false
	}
	if err := ctx.Err(); err != nil {
		return t.fail(err)
	}

	switch t.stage {
	case decodeStageHeader:
		return t.scanHeader()
	case decodeStageMiddle:
		return t.scanMiddle()
	case decodeStageSourceCRC:
		v, ok := t.expectCRCLine(labelSourceCRC32)
		if !ok {
			return false
		}
		t.op = ops.SourceCRC32{Value: v}
		t.stage = decodeStageTargetCRC
		return true
	case decodeStageTargetCRC:
		v, ok := t.expectCRCLine(labelTargetCRC32)
		if !ok {
			return false
		}
		t.op = ops.TargetCRC32{Value: v}
		t.stage = decodeStagePatchCRC
		return true
	default: // decodeStagePatchCRC: only reached once, checks exhaustion
		if line, ok := t.nextLine(); ok {
			return t.fail(corrupt(TrailingGarbage, "unexpected line after trailers: %q", line))
		}
		if err := t.sc.Err(); err != nil {
			return t.fail(err)
		}
		t.stage = decodeStageDone
		return false
	}
}

func (t *TextDecoder) scanHeader() bool {
	magicLine, ok := t.nextLine()
	if !ok {
		return t.fail(corrupt(TruncatedStream, "empty text patch"))
	}
	if magicLine+"\n" != TextMagic {
		return t.fail(corrupt(BadMagic, "got magic %q, want %q", magicLine, strings.TrimSuffix(TextMagic, "\n")))
	}
	sourceSize, err := t.expectDecimalField(labelSourceSize)
	if err != nil {
		return t.fail(err)
	}
	targetSize, err := t.expectDecimalField(labelTargetSize)
	if err != nil {
		return t.fail(err)
	}
	metadata, err := t.readMetadataBlock()
	if err != nil {
		return t.fail(err)
	}
	t.targetSize = targetSize
	t.op = ops.Header{SourceSize: uint32(sourceSize), TargetSize: uint32(targetSize), Metadata: metadata}
	t.stage = decodeStageMiddle
	if t.targetSize == 0 {
		t.stage = decodeStageSourceCRC
	}
	return true
}

func (t *TextDecoder) expectDecimalField(label string) (int64, error) {
	line, ok := t.nextLine()
	if !ok {
		return 0, corrupt(TruncatedStream, "expected %q line", label)
	}
	prefix := label + ": "
	if !strings.HasPrefix(line, prefix) {
		return 0, corrupt(DuplicateOrMisorderedTrailer, "expected %q line, got %q", label, line)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(line, prefix), 10, 64)
	if err != nil {
		return 0, corruptWrap(BadVarInt, "parsing "+label, err)
	}
	if n < 0 {
		return 0, corrupt(SizeNegative, "%s is negative: %d", label, n)
	}
	return n, nil
}

// readMetadataBlock reads the "metadata:\n" line and the escaped lines that
// follow, up to the line containing only ".".  A line whose first byte is
// "." is unescaped by dropping that leading byte.
func (t *TextDecoder) readMetadataBlock() (string, error) {
	line, ok := t.nextLine()
	if !ok {
		return "", corrupt(TruncatedStream, "expected metadata block")
	}
	if line != labelMetadata+":" {
		return "", corrupt(DuplicateOrMisorderedTrailer, "expected %q line, got %q", labelMetadata+":", line)
	}
	var sb strings.Builder
	first := true
	for {
		l, ok := t.nextLine()
		if !ok {
			return "", corrupt(TruncatedStream, "unterminated metadata block")
		}
		if l == "." {
			break
		}
		if !first {
			sb.WriteByte('\n')
		}
		first = false
		if strings.HasPrefix(l, ".") {
			sb.WriteString(l[1:])
		} else {
			sb.WriteString(l)
		}
	}
	return sb.String(), nil
}

func (t *TextDecoder) scanMiddle() bool {
	line, ok := t.nextLine()
	if !ok {
		return t.fail(corrupt(TruncatedStream, "patch ended before target size was reached"))
	}
	switch {
	case strings.HasPrefix(line, labelSourceRead+": "):
		n, err := strconv.Atoi(strings.TrimPrefix(line, labelSourceRead+": "))
		if err != nil {
			return t.fail(corruptWrap(BadVarInt, "parsing source-read length", err))
		}
		t.op = ops.SourceRead{Length: n}
	case line == labelTargetRead+":":
		data, err := t.readHexBlock()
		if err != nil {
			return t.fail(err)
		}
		t.op = ops.TargetRead{Data: data}
	case strings.HasPrefix(line, labelSourceCopy+": "):
		length, offset, err := t.parseLengthOffset(labelSourceCopy, line)
		if err != nil {
			return t.fail(err)
		}
		t.op = ops.SourceCopy{Length: length, Offset: offset}
	case strings.HasPrefix(line, labelTargetCopy+": "):
		length, offset, err := t.parseLengthOffset(labelTargetCopy, line)
		if err != nil {
			return t.fail(err)
		}
		t.op = ops.TargetCopy{Length: length, Offset: offset}
	default:
		return t.fail(corrupt(BadOpcode, "unrecognized operation line: %q", line))
	}
	t.written += int64(t.op.Bytespan())
	if t.written >= t.targetSize {
		t.stage = decodeStageSourceCRC
	}
	return true
}

func (t *TextDecoder) parseLengthOffset(label, line string) (int, int64, error) {
	fields := strings.Fields(strings.TrimPrefix(line, label+": "))
	if len(fields) != 2 {
		return 0, 0, corrupt(BadOpcode, "malformed %s line: %q", label, line)
	}
	length, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, corruptWrap(BadVarInt, "parsing "+label+" length", err)
	}
	offset, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, corruptWrap(BadVarInt, "parsing "+label+" offset", err)
	}
	return length, offset, nil
}

// readHexBlock reads hex digit lines (ignoring any non-hex characters) up
// to and including the terminating "." line.
func (t *TextDecoder) readHexBlock() ([]byte, error) {
	var hexDigits strings.Builder
	for {
		l, ok := t.nextLine()
		if !ok {
			return nil, corrupt(TruncatedStream, "unterminated target-read block")
		}
		if l == "." {
			break
		}
		for _, r := range l {
			if isHexDigit(r) {
				hexDigits.WriteRune(r)
			}
		}
	}
	data, err := hex.DecodeString(hexDigits.String())
	if err != nil {
		return nil, corruptWrap(BadVarInt, "decoding target-read hex data", err)
	}
	return data, nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (t *TextDecoder) expectCRCLine(label string) (uint32, bool) {
	line, ok := t.nextLine()
	if !ok {
		t.fail(corrupt(TruncatedStream, "expected %q line", label))
		return 0, false
	}
	prefix := label + ": "
	if !strings.HasPrefix(line, prefix) {
		t.fail(corrupt(DuplicateOrMisorderedTrailer, "expected %q line, got %q", label, line))
		return 0, false
	}
	hexValue := strings.TrimPrefix(line, prefix)
	if len(hexValue) != 8 {
		t.fail(corrupt(BadVarInt, "%s value %q is not 8 hex digits", label, hexValue))
		return 0, false
	}
	v, err := strconv.ParseUint(hexValue, 16, 32)
	if err != nil {
		t.fail(corruptWrap(BadVarInt, "parsing "+label, err))
		return 0, false
	}
	return uint32(v), true
}

// EncodeText drains src (wrapping it in a Validator first, as EncodeBinary
// does) and returns the blip-asm textual form.
func EncodeText(src OpSource) ([]byte, error) {
	ctx := context.Background()
	v := NewValidator(src)

	if !v.Scan(ctx) {
		if err := v.Err(); err != nil {
			return nil, err
		}
		return nil, corrupt(TruncatedStream, "operation stream is empty")
	}
	h, ok := v.Op().(ops.Header)
	if !ok {
		return nil, corrupt(BadOpcode, "first operation must be Header, got %T", v.Op())
	}

	var sb strings.Builder
	sb.WriteString(TextMagic)
	fmt.Fprintf(&sb, "%s: %d\n", labelSourceSize, h.SourceSize)
	fmt.Fprintf(&sb, "%s: %d\n", labelTargetSize, h.TargetSize)
	sb.WriteString(labelMetadata + ":\n")
	writeEscapedLines(&sb, h.Metadata)
	sb.WriteString(".\n")

	for v.Scan(ctx) {
		switch o := v.Op().(type) {
		case ops.SourceRead:
			fmt.Fprintf(&sb, "%s: %d\n", labelSourceRead, o.Length)
		case ops.TargetRead:
			sb.WriteString(labelTargetRead + ":\n")
			writeHexBlock(&sb, o.Data)
			sb.WriteString(".\n")
		case ops.SourceCopy:
			fmt.Fprintf(&sb, "%s: %d %s\n", labelSourceCopy, o.Length, signedDecimal(o.Offset))
		case ops.TargetCopy:
			fmt.Fprintf(&sb, "%s: %d %s\n", labelTargetCopy, o.Length, signedDecimal(o.Offset))
		case ops.SourceCRC32:
			fmt.Fprintf(&sb, "%s: %08X\n", labelSourceCRC32, o.Value)
		case ops.TargetCRC32:
			fmt.Fprintf(&sb, "%s: %08X\n", labelTargetCRC32, o.Value)
		default:
			return nil, corrupt(BadOpcode, "unknown operation %T", v.Op())
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func signedDecimal(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}
	return "+" + strconv.FormatInt(n, 10)
}

func writeEscapedLines(sb *strings.Builder, metadata string) {
	if metadata == "" {
		return
	}
	for _, line := range strings.Split(metadata, "\n") {
		if strings.HasPrefix(line, ".") {
			sb.WriteByte('.')
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

const hexLineBytes = 40

func writeHexBlock(sb *strings.Builder, data []byte) {
	for i := 0; i < len(data); i += hexLineBytes {
		end := i + hexLineBytes
		if end > len(data) {
			end = len(data)
		}
		sb.WriteString(hex.EncodeToString(data[i:end]))
		sb.WriteByte('\n')
	}
}
