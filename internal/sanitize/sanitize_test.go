package sanitize

import (
	"strings"
	"testing"
)

func TestKeepsAllowedFormatting(t *testing.T) {
	s := NewBiography()
	in := `<p>Born in <strong>Dublin</strong>, emigrated in <em>1887</em>.</p>`
	out := s.Sanitize(in)
	for _, tag := range []string{"<p>", "<strong>", "<em>"} {
		if !strings.Contains(out, tag) {
			t.Errorf("expected %s to survive, got %q", tag, out)
		}
	}
}

func TestStripsScripts(t *testing.T) {
	s := NewBiography()
	out := s.Sanitize(`<p>hi</p><script>alert(1)</script>`)
	if strings.Contains(out, "script") || strings.Contains(out, "alert") {
		t.Fatalf("script content survived: %q", out)
	}
}

func TestStripsEventHandlers(t *testing.T) {
	s := NewBiography()
	out := s.Sanitize(`<img src="https://example.com/a.png" onerror="alert(1)">`)
	if strings.Contains(out, "onerror") {
		t.Fatalf("event handler survived: %q", out)
	}
	if !strings.Contains(out, "img") {
		t.Fatalf("img should survive: %q", out)
	}
}

func TestIdempotent(t *testing.T) {
	s := NewBiography()
	in := `<p>Family <a href="https://example.com">records</a></p><iframe src="x"></iframe>`
	once := s.Sanitize(in)
	twice := s.Sanitize(once)
	if once != twice {
		t.Fatalf("sanitize not idempotent: %q vs %q", once, twice)
	}
}
