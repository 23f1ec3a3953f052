package generation

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/services/markdown"
)

// TemplateGenerator builds a fixed landing, offers, thank-you flow locally.
// It is used when no remote generation endpoint is configured. The output
// depends only on the resources, so regenerating an unchanged funnel yields
// the same flow.
type TemplateGenerator struct {
	markdown markdown.Renderer
	logger   logger.Interface
}

func NewTemplateGenerator(md markdown.Renderer, logger logger.Interface) *TemplateGenerator {
	return &TemplateGenerator{markdown: md, logger: logger}
}

var _ funnel.Generator = (*TemplateGenerator)(nil)

func (g *TemplateGenerator) Generate(ctx context.Context, funnelID string, resources []*catalog.Resource) (funnel.Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("no resources to build a flow from")
	}

	// Free lead magnets first, then paid offers; ties by id.
	ordered := slices.Clone(resources)
	slices.SortFunc(ordered, func(a, b *catalog.Resource) int {
		if a.ValueCategory() != b.ValueCategory() {
			if a.ValueCategory() == catalog.CategoryFree {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.ID(), b.ID())
	})

	doc := FlowDocument{
		FunnelID:  funnelID,
		Generator: "template",
		Steps:     make([]Step, 0, len(ordered)+2),
	}
	doc.Steps = append(doc.Steps, Step{Kind: StepLanding, Title: "Get " + ordered[0].Name()})

	for _, r := range ordered {
		html, err := g.markdown.Render(r.Description())
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", r.ID(), err)
		}
		doc.Steps = append(doc.Steps, Step{
			Kind:  StepOffer,
			Title: r.Name(),
			Offer: &OfferDetail{
				ResourceID:      r.ID(),
				Name:            r.Name(),
				ValueCategory:   r.ValueCategory().String(),
				OriginKind:      r.OriginKind().String(),
				Link:            r.Link(),
				PromoCode:       r.PromoCode(),
				DescriptionHTML: html,
			},
		})
	}
	doc.Steps = append(doc.Steps, Step{Kind: StepThankYou, Title: "Thank you"})

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flow: %w", err)
	}

	g.logger.Debugw("template flow generated", "funnel_id", funnelID, "steps", len(doc.Steps))
	return funnel.Flow(data), nil
}
