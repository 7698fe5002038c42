package score

import (
	"fmt"
	"strconv"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

const maxPillarScore = 5.0

// Scorer computes the weighted composite from per-pillar scores
type Scorer struct {
	weights []model.PillarWeight
	green   float64
	amber   float64
}

// PillarContribution is one row of the composite breakdown
type PillarContribution struct {
	Pillar   string  `json:"pillar"`
	Weight   float64 `json:"weight"`
	Raw      float64 `json:"raw"`     // coerced value before clamping
	Clamped  float64 `json:"clamped"` // in [0,5]
	Weighted float64 `json:"weighted"`
	Missing  bool    `json:"missing"`
}

// NewScorer creates a scorer. A nil config uses the built-in weights.
func NewScorer(config *model.ScoringConfig) *Scorer {
	if config == nil {
		config = &model.DefaultConfig().Scoring
	}
	return &Scorer{
		weights: config.Weights,
		green:   config.GreenThreshold,
		amber:   config.AmberThreshold,
	}
}

// Breakdown coerces and weights every configured pillar. Missing pillars,
// non-mapping entries and non-numeric scores count as 0.
func (s *Scorer) Breakdown(pillars *doc.Node) []PillarContribution {
	rows := make([]PillarContribution, 0, len(s.weights))
	for _, w := range s.weights {
		row := PillarContribution{Pillar: w.Pillar, Weight: w.Weight}
		raw, ok := pillars.Get(w.Pillar).Get("score").Float()
		if !ok {
			row.Missing = true
			raw = 0
		}
		row.Raw = raw
		row.Clamped = max(0, min(maxPillarScore, raw))
		row.Weighted = row.Clamped / maxPillarScore * w.Weight
		rows = append(rows, row)
	}
	return rows
}

// Composite returns the 0-100 weighted score, rounded to one decimal, and its band
func (s *Scorer) Composite(pillars *doc.Node) model.Composite {
	var total, weightSum float64
	for _, row := range s.Breakdown(pillars) {
		total += row.Weighted
		weightSum += row.Weight
	}

	pct := 0.0
	if weightSum != 0 {
		pct = roundOne(total / weightSum * 100)
	}
	return model.Composite{Score0100: pct, Band: s.Band(pct)}
}

// Band maps a composite score to Green, Amber or Red. Lower bounds are inclusive.
func (s *Scorer) Band(pct float64) model.Band {
	switch {
	case pct >= s.green:
		return model.BandGreen
	case pct >= s.amber:
		return model.BandAmber
	default:
		return model.BandRed
	}
}

// Apply writes scores.composite when scores.pillars is a mapping. It reports
// whether the composite was written.
func (s *Scorer) Apply(root *doc.Node) (model.Composite, bool) {
	scores := root.Get("scores")
	pillars := scores.Get("pillars")
	if !pillars.IsMapping() {
		return model.Composite{}, false
	}

	c := s.Composite(pillars)
	composite := doc.NewMapping()
	composite.Set("score_0_100", doc.NewFloat(c.Score0100))
	composite.Set("band", doc.NewString(string(c.Band)))
	scores.Set("composite", composite)
	return c, true
}

// Signals explains the composite: one signal per pillar plus one per missing pillar
func (s *Scorer) Signals(pillars *doc.Node) []model.Signal {
	var signals []model.Signal
	for _, row := range s.Breakdown(pillars) {
		signals = append(signals, model.Signal{
			Type:        model.SignalPillarContribution,
			Severity:    pillarSeverity(row.Clamped),
			Description: fmt.Sprintf("%s: %.1f/5 x %.2f", row.Pillar, row.Clamped, row.Weight),
			Data: map[string]any{
				"pillar":   row.Pillar,
				"raw":      row.Raw,
				"clamped":  row.Clamped,
				"weight":   row.Weight,
				"weighted": row.Weighted,
				"formula":  "min(max(score, 0), 5) / 5 * weight",
			},
		})
		if row.Missing {
			signals = append(signals, model.Signal{
				Type:        model.SignalMissingPillar,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("Pillar %s has no numeric score (counted as 0)", row.Pillar),
				Data:        map[string]any{"pillar": row.Pillar},
			})
		}
	}
	return signals
}

func pillarSeverity(clamped float64) model.SignalSeverity {
	switch {
	case clamped < 2:
		return model.SeverityCritical
	case clamped < 3:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// roundOne rounds half to even at one decimal, on the exact binary value
func roundOne(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 1, 64), 64)
	if err != nil {
		return f
	}
	return r
}
