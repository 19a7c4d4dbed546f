package security

import "testing"

func TestSanitize_AllowsFormattingTags(t *testing.T) {
	s := NewContentSanitizer()

	in := "<p>湖の眺めが<strong>最高</strong>です<br><em>静か</em></p>"
	if got := s.Sanitize(in); got != in {
		t.Errorf("Sanitize() = %q, want unchanged", got)
	}
}

func TestSanitize_RemovesScriptTags(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`設備が充実<script>alert("xss")</script>`)
	if got != "設備が充実" {
		t.Errorf("Sanitize() = %q", got)
	}
}

func TestSanitize_RemovesIframeAndStyle(t *testing.T) {
	s := NewContentSanitizer()

	cases := []string{
		`<iframe src="https://evil.example.com"></iframe>本文`,
		`<style>body{display:none}</style>本文`,
	}
	for _, in := range cases {
		if got := s.Sanitize(in); got != "本文" {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, "本文")
		}
	}
}

func TestSanitize_RemovesEventAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<p onclick="alert(1)">本文</p>`)
	if got != "<p>本文</p>" {
		t.Errorf("Sanitize() = %q", got)
	}
}

func TestSanitize_EmptyInput(t *testing.T) {
	s := NewContentSanitizer()

	if got := s.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	in := `<p>本文<script>alert(1)</script></p>`
	once := s.Sanitize(in)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize is not idempotent: %q != %q", once, twice)
	}
}

func TestSanitize_TrimsSurroundingWhitespace(t *testing.T) {
	s := NewContentSanitizer()

	if got := s.Sanitize("  本文  "); got != "本文" {
		t.Errorf("Sanitize() = %q", got)
	}
}
