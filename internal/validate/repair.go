package validate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

// GapPrefix starts every data gap message written by the repairer
const GapPrefix = "Not enough valid cited information: "

const flaggedSourceSep = " → flagged source: "

// TierCounts holds one counter per tier, tier 1 first
type TierCounts [3]int

func (c *TierCounts) add(t model.Tier) {
	if t >= model.Tier1 && t <= model.Tier3 {
		c[t-1]++
	}
}

// Get returns the counter for t, or 0 for an out-of-range tier
func (c TierCounts) Get(t model.Tier) int {
	if t < model.Tier1 || t > model.Tier3 {
		return 0
	}
	return c[t-1]
}

func (c TierCounts) node() *doc.Node {
	n := doc.NewMapping()
	for i, count := range c {
		n.Set(model.Tier(i+1).String(), doc.NewInt(count))
	}
	return n
}

// RepairStats summarises one repair pass
type RepairStats struct {
	Total       int
	Valid       int
	TierCounts  TierCounts
	ValidByTier TierCounts // moves with TierCounts until IsValid is tightened
	Invalid     []string
	GapsAdded   int
	Nulled      int
}

// QualityScore is valid/total as a percentage; zero citations yields 0
func (s RepairStats) QualityScore() float64 {
	return float64(s.Valid) / float64(max(1, s.Total)) * 100
}

// QualityLabel formats QualityScore the way it is stored in the report
func (s RepairStats) QualityLabel() string {
	return fmt.Sprintf("%.1f%%", s.QualityScore())
}

// Repairer walks a report document, blanks inadmissible citations, nulls the
// value they were supposed to support and records a data gap for each.
type Repairer struct {
	classifier *CitationClassifier
	sample     int
	logger     *zap.Logger
}

// NewRepairer creates a repairer. sample caps invalid_citations (10 when <= 0).
func NewRepairer(classifier *CitationClassifier, sample int, logger *zap.Logger) *Repairer {
	if classifier == nil {
		classifier = MustCitationClassifier(nil)
	}
	if sample <= 0 {
		sample = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repairer{classifier: classifier, sample: sample, logger: logger}
}

// ValidateAndRepair repairs root in place and returns it
func (r *Repairer) ValidateAndRepair(root *doc.Node) *doc.Node {
	r.Repair(root)
	return root
}

// Repair repairs root in place and returns the pass statistics. The summary
// fields are only written when root is a mapping.
func (r *Repairer) Repair(root *doc.Node) RepairStats {
	if root == nil {
		return RepairStats{}
	}
	run := &repairRun{
		repairer: r,
		root:     root,
		messages: make(map[string]bool),
		gapPaths: make(map[string]bool),
	}
	if existing := root.Get("data_gaps"); existing.IsSequence() {
		run.gaps = existing
		for _, item := range existing.Items {
			if msg, ok := item.Text(); ok {
				run.remember(msg)
			}
		}
	}
	run.priorGaps = make(map[string]bool, len(run.gapPaths))
	for path := range run.gapPaths {
		run.priorGaps[path] = true
	}

	run.visit("", root)

	if !root.IsMapping() {
		r.logger.Warn("report root is not a mapping, summary not written",
			zap.String("kind", root.Kind.String()))
		return run.stats
	}
	r.finalize(root, run.stats)

	r.logger.Debug("citations repaired",
		zap.Int("total", run.stats.Total),
		zap.Int("valid", run.stats.Valid),
		zap.Int("gaps_added", run.stats.GapsAdded),
		zap.Int("nulled", run.stats.Nulled),
	)
	return run.stats
}

func (r *Repairer) finalize(root *doc.Node, stats RepairStats) {
	summary := root.EnsureMapping("citations_summary")
	summary.Set("total_citations", doc.NewInt(stats.Total))
	summary.Set("valid_citations", doc.NewInt(stats.Valid))
	summary.Set("citation_quality_score", doc.NewString(stats.QualityLabel()))
	if len(stats.Invalid) > 0 {
		sample := stats.Invalid
		if len(sample) > r.sample {
			sample = sample[:r.sample]
		}
		summary.Set("invalid_citations", doc.NewStrings(sample))
	}
	summary.Set("tier_counts", stats.TierCounts.node())
	summary.Set("valid_by_tier", stats.ValidByTier.node())

	root.EnsureSequence("data_gaps")
}

type repairRun struct {
	repairer *Repairer
	root     *doc.Node
	gaps     *doc.Node
	messages map[string]bool
	gapPaths map[string]bool
	stats    RepairStats

	// paths that already had a gap before this pass started
	priorGaps map[string]bool
}

func (run *repairRun) visit(path string, n *doc.Node) {
	switch {
	case n.IsMapping():
		// index loop: addGap may append data_gaps to the root mid-walk
		for i := 0; i < len(n.Fields); i++ {
			f := n.Fields[i]
			if f.Key == "citation" && f.Value.IsString() {
				run.citation(path, n, i)
				continue
			}
			if f.Value.IsMapping() || f.Value.IsSequence() {
				run.visit(doc.ChildPath(path, f.Key), f.Value)
			}
		}
	case n.IsSequence():
		for i, item := range n.Items {
			run.visit(doc.IndexPath(path, i), item)
		}
	}
}

func (run *repairRun) citation(path string, group *doc.Node, idx int) {
	raw := group.Fields[idx].Value.Str
	c := run.repairer.classifier

	run.stats.Total++
	assessment := c.Assess(raw)
	if assessment.Admissible && c.IsValid(raw) {
		run.stats.Valid++
		run.stats.TierCounts.add(assessment.Tier)
		run.stats.ValidByTier.add(assessment.Tier)
		return
	}

	run.stats.Invalid = append(run.stats.Invalid, doc.ChildPath(path, "citation")+": "+raw)
	run.repairer.logger.Debug("citation rejected",
		zap.String("path", path),
		zap.String("reason", string(assessment.Reason)),
	)

	repaired := raw == "" && run.priorGaps[path] && hasNullSibling(group, idx)
	group.Fields[idx].Value = doc.NewString("")
	if !repaired && nullFirstSibling(group, idx) {
		run.stats.Nulled++
	}

	run.addGap(path, strings.TrimSpace(raw))
}

func (run *repairRun) addGap(path, flagged string) {
	msg := GapPrefix + path
	if flagged != "" {
		msg += flaggedSourceSep + flagged
	} else if run.gapPaths[path] {
		return
	}
	if run.messages[msg] {
		return
	}
	if run.gaps == nil {
		run.gaps = run.root.EnsureSequence("data_gaps")
	}
	run.gaps.Append(doc.NewString(msg))
	run.remember(msg)
	run.stats.GapsAdded++
}

func (run *repairRun) remember(msg string) {
	run.messages[msg] = true
	rest, ok := strings.CutPrefix(msg, GapPrefix)
	if !ok {
		return
	}
	if i := strings.Index(rest, flaggedSourceSep); i >= 0 {
		rest = rest[:i]
	}
	run.gapPaths[rest] = true
}

// nullFirstSibling sets the first non-empty string, number or boolean beside
// the citation to null. Only one sibling is touched.
func nullFirstSibling(group *doc.Node, idx int) bool {
	for j := range group.Fields {
		if j == idx || group.Fields[j].Key == "citation" {
			continue
		}
		v := group.Fields[j].Value
		if (v.IsString() && v.Str != "") || (v != nil && (v.Kind == doc.Number || v.Kind == doc.Bool)) {
			group.Fields[j].Value = doc.NewNull()
			return true
		}
	}
	return false
}

func hasNullSibling(group *doc.Node, idx int) bool {
	for j, f := range group.Fields {
		if j != idx && f.Value.IsNull() {
			return true
		}
	}
	return false
}
