package biblio

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/ipdd/internal/doc"
)

const title = "MEDICAL & SCIENTIFIC BIBLIOGRAPHY"

// renderOrder differs from classification priority
var renderOrder = []struct {
	section Section
	heading string
}{
	{PeerReviewed, "PEER-REVIEWED PUBLICATIONS"},
	{ClinicalTrial, "\nCLINICAL TRIALS"},
	{Regulatory, "\nREGULATORY DOCUMENTS"},
	{MarketResearch, "\nMARKET RESEARCH"},
	{Other, "\nOTHER SOURCES"},
}

// Render writes the bibliography text. Entries are sorted within a section
// and numbered from 1; empty sections are left out.
func Render(b Buckets) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, sec := range renderOrder {
		entries := append([]string(nil), b[sec.section]...)
		if len(entries) == 0 {
			continue
		}
		sort.Strings(entries)

		sb.WriteString(sec.heading + "\n")
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		for i, c := range entries {
			fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, c)
		}
	}
	return sb.String()
}

// Build extracts, partitions and renders in one step
func Build(root *doc.Node) string {
	return Render(Partition(Extract(root)))
}
