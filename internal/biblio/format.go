package biblio

import (
	"strings"

	"github.com/ppiankov/ipdd/internal/doc"
)

// Format renders a structured citation (a mapping with a "type" of journal,
// clinical_trial or regulatory) as one reference line. Absent or null fields
// take their defaults.
func Format(entry *doc.Node) string {
	get := func(key, def string) string {
		v := entry.Get(key)
		switch {
		case v.IsNull():
			return def
		case v.Kind == doc.Number:
			return v.Num
		case v.Kind == doc.Bool:
			if v.Bool {
				return "true"
			}
			return "false"
		case v.IsString():
			return v.Str
		default:
			b, err := doc.Marshal(v)
			if err != nil {
				return def
			}
			return string(b)
		}
	}

	switch get("type", "") {
	case "journal":
		var sb strings.Builder
		sb.WriteString(get("authors", "Unknown") + ". (" + get("year", "n.d.") + "). " +
			get("title", "Untitled") + ". " + get("journal", "Unknown Journal"))
		if v := get("volume", ""); v != "" {
			sb.WriteString(", " + v)
		}
		if p := get("pages", ""); p != "" {
			sb.WriteString(":" + p)
		}
		if d := get("doi", ""); d != "" {
			sb.WriteString(". DOI: " + d)
		} else if p := get("pmid", ""); p != "" {
			sb.WriteString(". PMID: " + p)
		}
		return sb.String()

	case "clinical_trial":
		return "ClinicalTrials.gov " + get("nct_number", "") + ". " + get("title", "Untitled") +
			". Sponsor: " + get("sponsor", "Unknown") + ". Status: " + get("status", "")

	case "regulatory":
		return get("agency", "FDA") + ". (" + get("year", "n.d.") + "). " + get("doc_type", "Guidance") +
			": " + get("title", "Untitled") + ". " + get("doc_number", "")

	default:
		return get("source", "Unknown") + ". (" + get("year", "n.d.") + "). " + get("title", "")
	}
}

// NormalizeEntries gives structured entries of the report's top-level
// bibliography list (a mapping with a "type" and no citation text) a
// "citation" field holding their formatted text, so they are classified and
// extracted like any other cited field. Entries that already carry a
// citation string are left alone. It returns the number of entries changed.
func NormalizeEntries(root *doc.Node) int {
	list := root.Get("bibliography")
	if !list.IsSequence() {
		return 0
	}
	n := 0
	for _, item := range list.Items {
		if !item.IsMapping() || !item.Get("type").IsString() {
			continue
		}
		if c := item.Get("citation"); c.IsString() {
			continue
		}
		item.Set("citation", doc.NewString(Format(item)))
		n++
	}
	return n
}
