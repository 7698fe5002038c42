package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/ipdd/internal/model"
)

// CitationClassifier decides whether a citation string is admissible and
// which source-quality tier it belongs to
type CitationClassifier struct {
	forbidden []string
	tiers     []*compiledTier
}

type compiledTier struct {
	tier     model.Tier
	patterns []*regexp.Regexp
}

// NewCitationClassifier compiles the blocklist and tier patterns once.
// A pattern that fails to compile is a configuration error.
func NewCitationClassifier(config *model.CitationConfig) (*CitationClassifier, error) {
	if config == nil {
		config = &model.DefaultConfig().Citation
	}

	classifier := &CitationClassifier{
		forbidden: make([]string, 0, len(config.Forbidden)),
		tiers:     make([]*compiledTier, 0, len(config.TierPatterns)),
	}

	for _, b := range config.Forbidden {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			classifier.forbidden = append(classifier.forbidden, b)
		}
	}

	for _, group := range config.TierPatterns {
		if group.Tier < model.Tier1 || group.Tier > model.Tier3 {
			return nil, fmt.Errorf("tier %d out of range 1..3", group.Tier)
		}
		ct := &compiledTier{tier: group.Tier}
		for _, p := range group.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("compile tier %d pattern %q: %w", group.Tier, p, err)
			}
			ct.patterns = append(ct.patterns, re)
		}
		classifier.tiers = append(classifier.tiers, ct)
	}

	return classifier, nil
}

// MustCitationClassifier is NewCitationClassifier for known-good configuration
func MustCitationClassifier(config *model.CitationConfig) *CitationClassifier {
	c, err := NewCitationClassifier(config)
	if err != nil {
		panic(err)
	}
	return c
}

// Assess classifies one citation string. The blocklist is checked before any
// tier pattern; text matching no pattern is admitted as a tier 3 fallback.
func (c *CitationClassifier) Assess(text string) model.Assessment {
	if strings.TrimSpace(text) == "" {
		return model.Assessment{Admissible: false, Tier: model.TierNone, Reason: model.ReasonEmpty}
	}

	lower := strings.ToLower(text)
	for _, b := range c.forbidden {
		if strings.Contains(lower, b) {
			return model.Assessment{Admissible: false, Tier: model.TierNone, Reason: model.ReasonForbidden}
		}
	}

	for _, ct := range c.tiers {
		for _, re := range ct.patterns {
			if re.MatchString(text) {
				return model.Assessment{Admissible: true, Tier: ct.tier, Reason: model.ReasonMatched}
			}
		}
	}

	return model.Assessment{Admissible: true, Tier: model.Tier3, Reason: model.ReasonFallback}
}

// IsValid reports whether text is admissible with a tier of 1, 2 or 3
func (c *CitationClassifier) IsValid(text string) bool {
	a := c.Assess(text)
	return a.Admissible && a.Tier >= model.Tier1 && a.Tier <= model.Tier3
}
