// Package redact scrubs secrets and personal contact details from free text
// and from reports before they are shared.
package redact

import (
	"regexp"
	"strings"

	"github.com/dshills/watchgraph/internal/schema"
)

const redacted = "[REDACTED]"

// rule is one scrubbing pass over free text.
type rule struct {
	name    string
	re      *regexp.Regexp
	replace func(match string) string
}

// Rules run in order. Key blocks go first so their body lines are not
// half-matched by the token rules.
var rules = []rule{
	{"private key", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+KEY-----.*?-----END [A-Z ]+KEY-----`), maskLines},
	{"credential assignment", regexp.MustCompile(`(?i)\b(?:password|passwd|secret|api[_-]?key|client[_-]?secret)\s*[:=]\s*\S+`), mask},
	{"bearer token", regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]{20,}=*`), mask},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`), mask},
	{"aws access key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), mask},
	{"api key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}`), mask},
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), mask},
	{"phone number", regexp.MustCompile(`\+[1-9][0-9]{0,2}(?:[ .\-]?[0-9]{2,4}){2,5}\b`), mask},
}

func mask(string) string { return redacted }

// maskLines masks every line of a multi-line match.
func maskLines(match string) string {
	return strings.Repeat(redacted+"\n", strings.Count(match, "\n")) + redacted
}

// Redact masks credentials and personal contact details in input. The
// number of newlines in the output always equals the number in the input.
func Redact(input string) string {
	for _, r := range rules {
		input = r.re.ReplaceAllStringFunc(input, r.replace)
	}
	return input
}

// Matched returns the names of the rules that fire on input, in rule order.
func Matched(input string) []string {
	var out []string
	for _, r := range rules {
		if r.re.MatchString(input) {
			out = append(out, r.name)
		}
	}
	return out
}

// System returns a copy of s with its owner email and free-text description
// scrubbed.
func System(s schema.System) schema.System {
	if s.OwnerEmail != "" {
		s.OwnerEmail = redacted
	}
	s.Description = Redact(s.Description)
	return s
}

// Mappings returns copies of ms with notes scrubbed. The input is not modified.
func Mappings(ms []schema.Mapping) []schema.Mapping {
	out := make([]schema.Mapping, len(ms))
	for i, m := range ms {
		m.Notes = Redact(m.Notes)
		out[i] = m
	}
	return out
}

// Dashboard scrubs every system row of a dashboard report in place.
func Dashboard(r *schema.DashboardReport) {
	for i := range r.Systems {
		r.Systems[i].System = System(r.Systems[i].System)
	}
}

// SystemReport scrubs a single-system report in place.
func SystemReport(r *schema.SystemReport) {
	r.System = System(r.System)
	r.Mappings = Mappings(r.Mappings)
}
