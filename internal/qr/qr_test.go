package qr

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRenderIsRectangular(t *testing.T) {
	out, err := Render("2@abcdef,ghijkl,mnopqr", "  ")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) < 10 {
		t.Fatalf("got %d lines, want a full code", len(lines))
	}
	width := utf8.RuneCountInString(lines[0])
	for i, line := range lines {
		if !strings.HasPrefix(line, "  ") {
			t.Errorf("line %d missing indent", i)
		}
		if n := utf8.RuneCountInString(line); n != width {
			t.Errorf("line %d has %d runes, want %d", i, n, width)
		}
	}
	if !strings.ContainsAny(out, "█▀▄") {
		t.Error("no modules drawn")
	}
}

func TestRenderRejectsOversizedContent(t *testing.T) {
	if _, err := Render(strings.Repeat("x", 8000), ""); err == nil {
		t.Error("expected error for content beyond QR capacity")
	}
}
