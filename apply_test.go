package blip

import (
	"bytes"
	"testing"
)

func TestApplyRoundTrip(t *testing.T) {
	cases := []struct {
		name           string
		source, target []byte
	}{
		{"empty-empty", nil, nil},
		{"empty-source", nil, []byte("new content")},
		{"identical", []byte("no change here"), []byte("no change here")},
		{"nul-bytes", []byte("abc"), []byte("ab\x00\x00cd")},
		{"single-byte", []byte("x"), []byte("y")},
		{"long-text", []byte("the quick brown fox jumps over the lazy dog, repeatedly, again and again"),
			[]byte("the quick brown fox leaps over one lazy dog, repeatedly, yet again and again and again")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			patch, err := Diff(c.source, c.target)
			if err != nil {
				t.Fatalf("Diff: %v", err)
			}
			if err := Validate(patch); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			got, err := Apply(patch, c.source)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !bytes.Equal(got, c.target) {
				t.Errorf("Apply result = %q, want %q", got, c.target)
			}
		})
	}
}

func TestApplyRejectsWrongSourceSize(t *testing.T) {
	patch, err := Diff([]byte("hello"), []byte("hello world"))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if _, err := Apply(patch, []byte("different length source")); err == nil {
		t.Fatal("expected an error when applying against a mismatched source length")
	}
}

func TestApplyMetadataSurvivesDiffButIsIgnoredByApply(t *testing.T) {
	patch, err := Diff([]byte("abc"), []byte("abcd"), WithMetadata("v1"))
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	text, err := BinaryToText(patch)
	if err != nil {
		t.Fatalf("BinaryToText: %v", err)
	}
	if !bytes.Contains(text, []byte("v1")) {
		t.Errorf("textual patch does not contain metadata %q:\n%s", "v1", text)
	}
	got, err := Apply(patch, []byte("abc"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(got, []byte("abcd")) {
		t.Errorf("Apply result = %q, want %q", got, "abcd")
	}
}
