package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateErrorKeepsWholeRunes(t *testing.T) {
	message := strings.Repeat("a", 511) + strings.Repeat("é", 10)

	got := truncateError(message)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated message is not valid UTF-8: %q", got[500:])
	}
	if len(got) != 511 {
		t.Fatalf("expected cut before the split rune, got %d bytes", len(got))
	}
}

func TestTruncateErrorMultibyteOnly(t *testing.T) {
	message := strings.Repeat("貨物", 200)

	got := truncateError(message)

	if !utf8.ValidString(got) || len(got) > 512 {
		t.Fatalf("unexpected truncation: %d bytes, valid=%v", len(got), utf8.ValidString(got))
	}
	if len(got) != 510 {
		t.Fatalf("expected 170 whole runes, got %d bytes", len(got))
	}
}

func TestTruncateErrorShortMessageUnchanged(t *testing.T) {
	if got := truncateError("row 3: bad weight"); got != "row 3: bad weight" {
		t.Fatalf("unexpected message %q", got)
	}
}
