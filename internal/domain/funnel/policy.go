package funnel

import (
	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
)

// Policy holds the per-funnel capacity and generation thresholds.
type Policy struct {
	PaidCapacity int
	FreeCapacity int
	MinTotal     int
	MinFree      int
}

func DefaultPolicy() Policy {
	return Policy{PaidCapacity: 3, FreeCapacity: 3, MinTotal: 3, MinFree: 1}
}

// Member is an assigned resource reduced to what the policy needs.
type Member struct {
	ID       string
	Category catalog.ValueCategory
}

// View is a funnel's resource set as the policy sees it. Members is the
// current (optimistic) set. PendingRemovals are unassigns still awaiting
// confirmation; they keep occupying capacity so that reverting them can
// never overfill the funnel. Held are members whose category change is in
// flight, counted under the category they are leaving.
type View struct {
	Members         []Member
	PendingRemovals []Member
	Held            []Member
}

func (v View) Has(resourceID string) bool {
	for _, m := range v.Members {
		if m.ID == resourceID {
			return true
		}
	}
	return false
}

func (v View) occupied(c catalog.ValueCategory) int {
	n := 0
	for _, m := range v.Members {
		if m.Category == c {
			n++
		}
	}
	for _, m := range v.PendingRemovals {
		if m.Category == c {
			n++
		}
	}
	for _, m := range v.Held {
		if m.Category == c {
			n++
		}
	}
	return n
}

func (p Policy) capacity(c catalog.ValueCategory) int {
	if c == catalog.CategoryPaid {
		return p.PaidCapacity
	}
	return p.FreeCapacity
}

// CheckAssign returns nil when the resource may join the funnel, otherwise
// shared.ErrAlreadyAssigned or shared.ErrLimitReached.
func (p Policy) CheckAssign(v View, resourceID string, c catalog.ValueCategory) error {
	if v.Has(resourceID) {
		return shared.ErrAlreadyAssigned
	}
	if v.occupied(c) >= p.capacity(c) {
		return shared.ErrLimitReached
	}
	return nil
}

// CheckCategoryChange returns shared.ErrLimitReached when a member moving
// into category c would overfill the funnel.
func (p Policy) CheckCategoryChange(v View, c catalog.ValueCategory) error {
	if v.occupied(c) >= p.capacity(c) {
		return shared.ErrLimitReached
	}
	return nil
}

// CanAssign is CheckAssign as a predicate. Both the affordance layer and the
// coordinator call it, so there is one definition of the rule.
func (p Policy) CanAssign(v View, r *catalog.Resource) bool {
	return p.CheckAssign(v, r.ID(), r.ValueCategory()) == nil
}

// Deficiencies lists the unmet generation requirements for members.
func (p Policy) Deficiencies(members []Member) []Deficiency {
	free := 0
	for _, m := range members {
		if m.Category == catalog.CategoryFree {
			free++
		}
	}

	var out []Deficiency
	if len(members) < p.MinTotal {
		out = append(out, DeficiencyTooFewTotal)
	}
	if free == 0 || free < p.MinFree {
		out = append(out, DeficiencyNoFreeResource)
	}
	return out
}
