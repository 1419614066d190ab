package entitlement

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/entitlement/pkg/catalog"
)

// CatalogAligner derives phase boundaries from catalog durations. The
// boundaries of a plan are planStart plus the cumulative durations of its
// phases; the next timed phase is the one starting at the first boundary
// strictly after now. An unlimited phase, or the end of a plan's last phase,
// ends alignment.
type CatalogAligner struct {
	catalog atomic.Pointer[catalog.Catalog]
}

// NewCatalogAligner returns an aligner that must be primed before use.
func NewCatalogAligner() *CatalogAligner {
	return &CatalogAligner{}
}

// Prime installs a snapshot of cat. It may be called again to swap catalogs.
func (a *CatalogAligner) Prime(cat *catalog.Catalog) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	a.catalog.Store(cat.Clone())
	return nil
}

func (a *CatalogAligner) NextTimedPhase(_ context.Context, _ *Subscription, plan string, now, planStart time.Time) (*TimedPhase, error) {
	cat := a.catalog.Load()
	if cat == nil {
		return nil, ErrCatalogNotPrimed
	}

	p, ok := cat.Plan(plan)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, plan)
	}

	boundary := planStart
	for i, phase := range p.Phases {
		if phase.Duration.IsUnlimited() || i == len(p.Phases)-1 {
			return nil, nil
		}
		boundary = phase.Duration.AddTo(boundary)
		if boundary.After(now) {
			return &TimedPhase{
				Plan:        p.Name,
				Phase:       p.Phases[i+1].Name,
				EffectiveAt: boundary,
			}, nil
		}
	}
	return nil, nil
}
