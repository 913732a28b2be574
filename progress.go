package blip

// Progress reports diff-engine advancement, for callers driving a long
// diff over large buffers (e.g. the cmd/blip CLI's progress bar).
type Progress struct {
	// TargetWriteOffset is how many target bytes have been definitively
	// covered by emitted operations so far.
	TargetWriteOffset int64
	// TargetSize is the total size of the target being diffed.
	TargetSize int64
}

type diffConfig struct {
	blocksize int
	metadata  string
	progress  chan<- Progress
}

// DiffOption represents an option to Diff, in the same style as the
// teacher's ReaderOption/ScannerOption (reader.go, scanner.go): a function
// that mutates an unexported options struct.
type DiffOption func(*diffConfig)

// WithMetadata sets the patch's opaque metadata string.
func WithMetadata(metadata string) DiffOption {
	return func(c *diffConfig) { c.metadata = metadata }
}

// WithBlockSize overrides the block size the diff engine would otherwise
// derive from len(source)+len(target). Panics are never used here; a
// non-positive value is silently ignored, leaving the computed default in
// place.
func WithBlockSize(blocksize int) DiffOption {
	return func(c *diffConfig) {
		if blocksize > 0 {
			c.blocksize = blocksize
		}
	}
}

// WithProgress asks Diff to send a Progress value on ch each time the diff
// engine emits an operation. Sends are best-effort: if ch has no
// ready receiver, the update is dropped rather than blocking the diff.
func WithProgress(ch chan<- Progress) DiffOption {
	return func(c *diffConfig) { c.progress = ch }
}

func defaultBlockSize(sourceLen, targetLen int) int {
	return (sourceLen+targetLen)/1000000 + 1
}
