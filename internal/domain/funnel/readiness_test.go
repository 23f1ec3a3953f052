package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_InsufficientIffRequirementsUnmet(t *testing.T) {
	p := DefaultPolicy()

	r := Evaluate(p, []Member{paid("a"), paid("b")}, Status{})
	assert.Equal(t, StateInsufficient, r.State)
	assert.ElementsMatch(t, []Deficiency{DeficiencyTooFewTotal, DeficiencyNoFreeResource}, r.Deficiencies)
	assert.Equal(t, 2, r.Paid)
	assert.Equal(t, 0, r.Free)

	r = Evaluate(p, []Member{paid("a"), paid("b"), free("c")}, Status{})
	assert.Equal(t, StateReadyToGenerate, r.State)
	assert.Empty(t, r.Deficiencies)
}

func TestEvaluate_Precedence(t *testing.T) {
	p := DefaultPolicy()
	ready := []Member{paid("a"), free("b"), free("c")}

	tests := []struct {
		name    string
		members []Member
		status  Status
		want    State
		locked  bool
	}{
		{"deployed beats everything", ready, Status{Deployed: true, Generating: true, HasFlow: true}, StateDeployed, true},
		{"generating beats flow", ready, Status{Generating: true, HasFlow: true}, StateGenerating, true},
		{"flow present", ready, Status{HasFlow: true}, StateGenerated, false},
		{"flow present even when deficient", []Member{paid("a")}, Status{HasFlow: true}, StateGenerated, false},
		{"ready", ready, Status{}, StateReadyToGenerate, false},
		{"empty funnel", nil, Status{}, StateInsufficient, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(p, tt.members, tt.status)
			assert.Equal(t, tt.want, r.State)
			assert.Equal(t, tt.locked, r.Locked())
		})
	}
}

func TestFlow_IsEmpty(t *testing.T) {
	assert.True(t, Flow(nil).IsEmpty())
	assert.True(t, Flow(" null ").IsEmpty())
	assert.False(t, Flow(`{"steps":[]}`).IsEmpty())
}
