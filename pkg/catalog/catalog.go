package catalog

import (
	"fmt"
	"slices"
	"time"
)

// TimeUnit is the unit a phase duration is expressed in.
type TimeUnit string

const (
	UnitDay       TimeUnit = "day"
	UnitMonth     TimeUnit = "month"
	UnitYear      TimeUnit = "year"
	UnitUnlimited TimeUnit = "unlimited"
)

// PhaseType classifies a phase within a plan.
type PhaseType string

const (
	PhaseTrial     PhaseType = "trial"
	PhaseDiscount  PhaseType = "discount"
	PhaseFixedTerm PhaseType = "fixed_term"
	PhaseEvergreen PhaseType = "evergreen"
)

// Duration is the length of a phase.
// A zero Number with a non-unlimited unit is rejected by Validate.
type Duration struct {
	Unit   TimeUnit `yaml:"unit"`
	Number int      `yaml:"number"`
}

// IsUnlimited reports whether the phase never ends on its own.
func (d Duration) IsUnlimited() bool {
	return d.Unit == UnitUnlimited
}

// AddTo returns t moved forward by the duration.
// Unlimited durations return t unchanged.
func (d Duration) AddTo(t time.Time) time.Time {
	switch d.Unit {
	case UnitDay:
		return t.AddDate(0, 0, d.Number)
	case UnitMonth:
		return t.AddDate(0, d.Number, 0)
	case UnitYear:
		return t.AddDate(d.Number, 0, 0)
	default:
		return t
	}
}

func (d Duration) String() string {
	if d.IsUnlimited() {
		return string(UnitUnlimited)
	}
	return fmt.Sprintf("%d %s", d.Number, d.Unit)
}

// Phase is a time-bounded segment of a plan.
type Phase struct {
	Name     string    `yaml:"name"`
	Type     PhaseType `yaml:"type"`
	Duration Duration  `yaml:"duration"`
}

// Plan is an ordered sequence of phases. The last phase is usually evergreen.
type Plan struct {
	Name    string  `yaml:"name"`
	Product string  `yaml:"product"`
	Phases  []Phase `yaml:"phases"`
}

// Phase looks up a phase by name.
func (p Plan) Phase(name string) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return Phase{}, false
}

// FirstPhase returns the phase a new subscription starts in.
func (p Plan) FirstPhase() (Phase, bool) {
	if len(p.Phases) == 0 {
		return Phase{}, false
	}
	return p.Phases[0], true
}

// Catalog is the set of plans active from EffectiveDate on.
type Catalog struct {
	Name          string          `yaml:"name"`
	EffectiveDate time.Time       `yaml:"effective_date"`
	Plans         map[string]Plan `yaml:"plans"`
}

// Plan looks up a plan by name.
func (c *Catalog) Plan(name string) (Plan, bool) {
	if c == nil {
		return Plan{}, false
	}
	p, ok := c.Plans[name]
	return p, ok
}

// PlanNames returns plan names in sorted order.
func (c *Catalog) PlanNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Plans))
	for name := range c.Plans {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy so providers never hand out shared state.
func (c *Catalog) Clone() *Catalog {
	if c == nil {
		return nil
	}
	out := &Catalog{
		Name:          c.Name,
		EffectiveDate: c.EffectiveDate,
		Plans:         make(map[string]Plan, len(c.Plans)),
	}
	for name, p := range c.Plans {
		out.Plans[name] = Plan{
			Name:    p.Name,
			Product: p.Product,
			Phases:  slices.Clone(p.Phases),
		}
	}
	return out
}

// Validate checks the catalog is internally consistent.
func (c *Catalog) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: catalog is nil", ErrInvalidCatalog)
	}
	if len(c.Plans) == 0 {
		return fmt.Errorf("%w: no plans defined", ErrInvalidCatalog)
	}

	for key, plan := range c.Plans {
		if plan.Name != key {
			return fmt.Errorf("%w: plan key %q does not match plan name %q", ErrInvalidCatalog, key, plan.Name)
		}
		if len(plan.Phases) == 0 {
			return fmt.Errorf("%w: plan %q has no phases", ErrInvalidCatalog, key)
		}

		seen := make(map[string]struct{}, len(plan.Phases))
		last := len(plan.Phases) - 1
		for i, ph := range plan.Phases {
			if ph.Name == "" {
				return fmt.Errorf("%w: plan %q has a phase without a name", ErrInvalidCatalog, key)
			}
			if _, dup := seen[ph.Name]; dup {
				return fmt.Errorf("%w: plan %q has duplicate phase %q", ErrInvalidCatalog, key, ph.Name)
			}
			seen[ph.Name] = struct{}{}

			switch ph.Duration.Unit {
			case UnitUnlimited:
				if i != last {
					return fmt.Errorf("%w: plan %q phase %q is unlimited but not last", ErrInvalidCatalog, key, ph.Name)
				}
			case UnitDay, UnitMonth, UnitYear:
				if ph.Duration.Number <= 0 {
					return fmt.Errorf("%w: plan %q phase %q has non-positive duration", ErrInvalidCatalog, key, ph.Name)
				}
			default:
				return fmt.Errorf("%w: plan %q phase %q has unknown time unit %q", ErrInvalidCatalog, key, ph.Name, ph.Duration.Unit)
			}
		}
	}

	return nil
}
