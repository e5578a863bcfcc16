package notediff

import (
	"strings"
	"testing"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func TestDiff_Unchanged(t *testing.T) {
	if out := Diff("Reviewed with legal.", "Reviewed with legal."); out != "" {
		t.Errorf("expected empty diff, got %q", out)
	}
}

func TestDiff_WhitespaceOnlyChangeIgnored(t *testing.T) {
	if out := Diff("line one\r\nline two", "line one   \nline two"); out != "" {
		t.Errorf("expected empty diff for whitespace-only change, got %q", out)
	}
}

func TestDiff_AppliesCleanly(t *testing.T) {
	before := "Risk register drafted.\nAwaiting sign-off."
	after := "Risk register drafted.\nSigned off by CISO on 2025-03-01."
	out := Diff(before, after)
	if out == "" {
		t.Fatal("expected non-empty diff")
	}
	if !strings.HasPrefix(out, "@@") {
		t.Errorf("diff is not in patch format: %q", out)
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(out)
	if err != nil {
		t.Fatalf("PatchFromText: %v", err)
	}
	got, applied := dmp.PatchApply(patches, before)
	for i, ok := range applied {
		if !ok {
			t.Errorf("hunk %d failed to apply", i)
		}
	}
	if got != after {
		t.Errorf("applied = %q, want %q", got, after)
	}
}

func TestDiff_FromEmpty(t *testing.T) {
	if out := Diff("", "first note"); out == "" {
		t.Error("expected diff when notes are added")
	}
}

func TestFormat(t *testing.T) {
	out := Format("m-42", "a", "b")
	if !strings.HasPrefix(out, "# notes for m-42\n") {
		t.Errorf("Format header missing: %q", out)
	}
	if Format("m-42", "same", "same") != "" {
		t.Error("Format should be empty for unchanged notes")
	}
}

func TestSummary(t *testing.T) {
	if got := Summary("abc", "abXYc"); got != "+2/-0 chars" {
		t.Errorf("Summary = %q, want +2/-0 chars", got)
	}
}

func TestNewChange(t *testing.T) {
	at := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	c := NewChange("m-1", "draft", "final draft", at)
	if c == nil {
		t.Fatal("NewChange returned nil for changed notes")
	}
	if c.MappingID != "m-1" || !c.At.Equal(at) || c.Summary != "+6/-0 chars" || c.Patch == "" {
		t.Errorf("change = %+v", c)
	}
	if NewChange("m-1", "same\r\n", "same\n", at) != nil {
		t.Error("NewChange should be nil when only line endings differ")
	}
}
