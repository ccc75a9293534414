package transport

import (
	"strings"
	"testing"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := SplitText("hello world", 2000)
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("SplitText = %v", got)
	}
}

func TestSplitTextWordBoundaries(t *testing.T) {
	t.Parallel()
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma ", 40))
	chunks := SplitText(text, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("chunk %d exceeds limit: %q", i, c)
		}
		if c == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		for _, w := range strings.Fields(c) {
			switch w {
			case "alpha", "beta", "gamma":
			default:
				t.Fatalf("chunk %d broke a word: %q", i, w)
			}
		}
	}
	if joined := strings.Join(chunks, " "); strings.Join(strings.Fields(joined), " ") != text {
		t.Fatalf("content changed across split")
	}
}

func TestSplitTextOversizedWord(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 120)
	chunks := SplitText("intro "+long+" outro", 50)
	for i, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("chunk %d exceeds limit: %q", i, c)
		}
	}
	if got := strings.Join(strings.Fields(strings.Join(chunks, " ")), ""); got != "intro"+long+"outro" {
		t.Fatalf("oversized word corrupted: %q", got)
	}
}

func TestSplitTextRuneSafety(t *testing.T) {
	t.Parallel()
	text := strings.TrimSpace(strings.Repeat("отметка пришла ", 30))
	for _, c := range SplitText(text, 40) {
		if len([]rune(c)) > 40 {
			t.Fatalf("chunk exceeds rune limit: %q", c)
		}
		if !strings.Contains("отметка пришла", strings.Fields(c)[0]) {
			t.Fatalf("unexpected token in %q", c)
		}
	}
}

func TestBatchAttachments(t *testing.T) {
	t.Parallel()
	atts := make([]Attachment, 11)
	for i := range atts {
		atts[i].OriginalName = string(rune('a' + i))
	}
	groups := BatchAttachments(atts, MaxAttachmentsPerMessage)
	if len(groups) != 2 || len(groups[0]) != 10 || len(groups[1]) != 1 {
		t.Fatalf("groups = %d/%v", len(groups), groups)
	}
	if groups[0][0].OriginalName != "a" || groups[1][0].OriginalName != "k" {
		t.Fatal("order not preserved")
	}
	if BatchAttachments(nil, 10) != nil {
		t.Fatal("empty input must produce no batches")
	}
}
