package diff

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerate_Modification(t *testing.T) {
	old := []byte("a\nb\nc\n")
	updated := []byte("a\nB\nc\n")

	text, err := Generate("src/x.cc", old, updated, GenerateOptions{
		Header: []string{"Uppercase b", "Target: v24.10.0"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.HasPrefix(text, "# Uppercase b\n# Target: v24.10.0\n--- a/src/x.cc\n+++ b/src/x.cc\n") {
		t.Errorf("unexpected header:\n%s", text)
	}

	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.Preamble) != 2 {
		t.Errorf("Preamble = %q, want 2 comment lines", p.Preamble)
	}
	h := p.Files[0].Hunks[0]
	if got := h.AddedText(); len(got) != 1 || got[0] != "B" {
		t.Errorf("AddedText() = %q, want [B]", got)
	}
	if got := h.RemovedText(); len(got) != 1 || got[0] != "b" {
		t.Errorf("RemovedText() = %q, want [b]", got)
	}
}

func TestGenerate_NoTrailingNewline(t *testing.T) {
	text, err := Generate("f", []byte("a\nb"), []byte("a\nc"), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := Parse(text); err != nil {
		t.Fatalf("Parse() error = %v\n%s", err, text)
	}
}

func TestGenerate_Creation(t *testing.T) {
	text, err := Generate("src/new.h", nil, []byte("x\ny\n"), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v\n%s", err, text)
	}
	f := p.Files[0]
	if !f.IsNew || f.Path() != "src/new.h" {
		t.Errorf("IsNew=%v Path=%q", f.IsNew, f.Path())
	}
	if f.Hunks[0].NewCount != 2 || f.Hunks[0].OldCount != 0 {
		t.Errorf("counts = %d,%d; want 0,2", f.Hunks[0].OldCount, f.Hunks[0].NewCount)
	}
}

func TestGenerate_NoChanges(t *testing.T) {
	_, err := Generate("f", []byte("same\n"), []byte("same\n"), GenerateOptions{})
	if !errors.Is(err, ErrNoChanges) {
		t.Errorf("Generate() error = %v, want ErrNoChanges", err)
	}
}
