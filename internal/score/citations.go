package score

import (
	"fmt"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

// CitationSignals reads the repaired citations_summary and data_gaps sections
// of a report and describes them as signals. It returns nil when the report
// has not been repaired.
func CitationSignals(root *doc.Node) []model.Signal {
	summary := root.Get("citations_summary")
	if !summary.IsMapping() {
		return nil
	}

	total := intField(summary, "total_citations")
	valid := intField(summary, "valid_citations")
	signals := []model.Signal{citationQualitySignal(total, valid)}

	tiers := summary.Get("tier_counts")
	t1 := intField(tiers, model.Tier1.String())
	t2 := intField(tiers, model.Tier2.String())
	t3 := intField(tiers, model.Tier3.String())
	signals = append(signals, tierDistributionSignal(t1, t2, t3))

	if gaps := root.Get("data_gaps"); gaps.Len() > 0 {
		severity := model.SeverityWarning
		if gaps.Len() > total/2 {
			severity = model.SeverityCritical
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalDataGaps,
			Severity:    severity,
			Description: fmt.Sprintf("%d claims lacked an acceptable citation", gaps.Len()),
			Data:        map[string]any{"gaps": gaps.Len(), "citations": total},
		})
	}
	return signals
}

func citationQualitySignal(total, valid int) model.Signal {
	ratio := float64(valid) / float64(max(1, total))

	severity := model.SeverityInfo
	if total == 0 || ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 0.8 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalCitationQuality,
		Severity:    severity,
		Description: fmt.Sprintf("Valid citations: %d/%d (%.1f%%)", valid, total, ratio*100),
		Data: map[string]any{
			"total":   total,
			"valid":   valid,
			"ratio":   ratio,
			"formula": "valid / max(1, total) * 100",
		},
	}
}

func tierDistributionSignal(t1, t2, t3 int) model.Signal {
	counted := t1 + t2 + t3
	if counted == 0 {
		return model.Signal{
			Type:        model.SignalTierDistribution,
			Severity:    model.SeverityWarning,
			Description: "No admissible citations",
			Data:        map[string]any{"counted": 0},
		}
	}

	weighted := float64(t1*3+t2*2+t3) / float64(counted*3)

	severity := model.SeverityInfo
	if t1 == 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalTierDistribution,
		Severity:    severity,
		Description: fmt.Sprintf("Tier distribution: %d tier 1, %d tier 2, %d tier 3", t1, t2, t3),
		Data: map[string]any{
			"tier1":    t1,
			"tier2":    t2,
			"tier3":    t3,
			"weighted": weighted,
			"formula":  "(tier1*3 + tier2*2 + tier3*1) / (counted*3)",
		},
	}
}

func intField(n *doc.Node, key string) int {
	f, ok := n.Get(key).Float()
	if !ok {
		return 0
	}
	return int(f)
}
