package blip

import "testing"

func TestDefaultBlockSize(t *testing.T) {
	cases := []struct {
		sourceLen, targetLen int
		want                 int
	}{
		{0, 0, 1},
		{500000, 500000, 2},
		{32 << 20, 0, 34},
	}
	for _, c := range cases {
		if got := defaultBlockSize(c.sourceLen, c.targetLen); got != c.want {
			t.Errorf("defaultBlockSize(%d, %d) = %d, want %d", c.sourceLen, c.targetLen, got, c.want)
		}
	}
}

func TestWithBlockSizeOverride(t *testing.T) {
	cfg := diffConfig{blocksize: defaultBlockSize(0, 0)}
	WithBlockSize(64)(&cfg)
	if cfg.blocksize != 64 {
		t.Errorf("blocksize = %d, want 64", cfg.blocksize)
	}
	WithBlockSize(0)(&cfg) // non-positive is ignored
	if cfg.blocksize != 64 {
		t.Errorf("blocksize after zero override = %d, want unchanged 64", cfg.blocksize)
	}
}

func TestDiffReportsProgress(t *testing.T) {
	source := bytesRepeat("ab", 1000)
	target := bytesRepeat("ac", 1000)
	ch := make(chan Progress, 1024)
	patch, err := Diff(source, target, WithProgress(ch))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	close(ch)
	var last Progress
	count := 0
	for p := range ch {
		last = p
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one progress update")
	}
	if last.TargetSize != int64(len(target)) {
		t.Errorf("last progress TargetSize = %d, want %d", last.TargetSize, len(target))
	}
	if err := Validate(patch); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func bytesRepeat(s string, n int) []byte {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return out
}
