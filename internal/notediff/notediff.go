// Package notediff renders changes to a mapping's free-text notes as a
// patch-format diff.
package notediff

import (
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns a patch-format diff turning before into after, or "" when the
// two are equal once CRLF and trailing whitespace are normalised.
func Diff(before, after string) string {
	nb, na := normalize(before), normalize(after)
	if nb == na {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(nb, na, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(nb, diffs))
}

// Change is one recorded notes mutation.
type Change struct {
	MappingID string    `json:"mapping_id"`
	At        time.Time `json:"at"`
	Summary   string    `json:"summary"`
	Patch     string    `json:"patch"`
}

// NewChange returns the change from before to after, or nil when the notes
// are unchanged after normalisation.
func NewChange(mappingID, before, after string, at time.Time) *Change {
	p := Diff(before, after)
	if p == "" {
		return nil
	}
	return &Change{MappingID: mappingID, At: at, Summary: Summary(before, after), Patch: p}
}

// Format writes a header followed by the patch, or "" when there is nothing
// to show.
func Format(mappingID, before, after string) string {
	p := Diff(before, after)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("# notes for %s\n%s", mappingID, p)
}

// Summary describes the size of a change in characters.
func Summary(before, after string) string {
	dmp := diffmatchpatch.New()
	var ins, del int
	for _, d := range dmp.DiffMain(normalize(before), normalize(after), false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			ins += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			del += len([]rune(d.Text))
		}
	}
	return fmt.Sprintf("+%d/-%d chars", ins, del)
}

// normalize trims trailing whitespace from each line and converts CRLF to LF.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
