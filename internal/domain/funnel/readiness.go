package funnel

import "github.com/orris-inc/storefront/internal/domain/catalog"

// State is the readiness of a funnel for generation and deployment.
type State string

const (
	StateInsufficient    State = "INSUFFICIENT"
	StateReadyToGenerate State = "READY_TO_GENERATE"
	StateGenerating      State = "GENERATING"
	StateGenerated       State = "GENERATED"
	StateDeployed        State = "DEPLOYED"
)

// IsLocked reports whether the resource set is frozen in s.
func (s State) IsLocked() bool {
	return s == StateGenerating || s == StateDeployed
}

func (s State) String() string {
	return string(s)
}

// Deficiency names one unmet generation requirement.
type Deficiency string

const (
	DeficiencyTooFewTotal    Deficiency = "too_few_total"
	DeficiencyNoFreeResource Deficiency = "no_free_resource"
)

// Status carries the flags that, with the resource set, determine State.
type Status struct {
	Deployed   bool
	Generating bool
	HasFlow    bool
}

// Readiness is the computed gate value for one funnel.
type Readiness struct {
	State        State
	Deficiencies []Deficiency
	Total        int
	Paid         int
	Free         int
	// Highlighted are resource ids flagged as deficient by the presentation
	// layer. Empty whenever the aggregate requirements are met.
	Highlighted []string
}

func (r Readiness) Locked() bool {
	return r.State.IsLocked()
}

// Evaluate derives readiness. Deployment wins over an in-flight generation,
// which wins over an existing flow; only then do deficiencies matter.
func Evaluate(p Policy, members []Member, st Status) Readiness {
	r := Readiness{
		Deficiencies: p.Deficiencies(members),
		Total:        len(members),
	}
	for _, m := range members {
		if m.Category == catalog.CategoryPaid {
			r.Paid++
		} else {
			r.Free++
		}
	}

	switch {
	case st.Deployed:
		r.State = StateDeployed
	case st.Generating:
		r.State = StateGenerating
	case st.HasFlow:
		r.State = StateGenerated
	case len(r.Deficiencies) > 0:
		r.State = StateInsufficient
	default:
		r.State = StateReadyToGenerate
	}
	return r
}
