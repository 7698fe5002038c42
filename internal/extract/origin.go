package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/ipdd/internal/doc"
)

var originFields = []string{
	"assignee_country", "inventor_country", "priority_country",
	"jurisdiction", "applicant_country", "origin_country",
}

var originCandidates = []string{
	"united states", "usa", "us", "china", "cn", "europe", "eu", "japan", "jp",
	"korea", "kr", "india", "in", "united kingdom", "uk", "germany", "de",
	"france", "fr", "italy", "it", "canada", "ca", "australia", "au", "brazil", "br",
}

var originPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(originCandidates))
	for i, c := range originCandidates {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(c) + `\b`)
	}
	return out
}()

// GuessOrigin returns a best-effort origin country hint. Known top-level
// fields win; otherwise the first candidate that appears as a whole word in
// the lowercased record text is returned. The hint is never authoritative.
func GuessOrigin(tech *doc.Node) string {
	for _, key := range originFields {
		if s, ok := tech.Get(key).Text(); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	text := strings.ToLower(recordText(tech))
	for i, re := range originPatterns {
		if re.MatchString(text) {
			return originCandidates[i]
		}
	}
	return ""
}
