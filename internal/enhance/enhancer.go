// Package enhance holds the optional domain collaborator: a prompt addendum
// before generation and a quality review after repair.
package enhance

import (
	"context"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

// Enhancer adds sector knowledge around a generation. Errors from either
// method are logged by the caller and never fail a run.
type Enhancer interface {
	// PromptAddendum returns extra requirements for the category, or ""
	PromptAddendum(category model.Category) (string, error)

	// Review grades a repaired report. A nil assessment means no review.
	Review(ctx context.Context, report *doc.Node, category model.Category) (*model.QualityAssessment, error)
}

// Nop is the enhancer used when domain enhancement is disabled
type Nop struct{}

func (Nop) PromptAddendum(model.Category) (string, error) { return "", nil }

func (Nop) Review(context.Context, *doc.Node, model.Category) (*model.QualityAssessment, error) {
	return nil, nil
}

// New returns a DomainEnhancer when enabled and Nop otherwise
func New(config model.EnhancerConfig) Enhancer {
	if !config.Enabled {
		return Nop{}
	}
	return NewDomainEnhancer(config.PassThreshold)
}
