package dto

import (
	"encoding/json"
	"time"

	"github.com/orris-inc/storefront/internal/application/funnel/services"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/shared/mapper"
)

// CreateFunnelRequest represents a request to create a funnel
type CreateFunnelRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// MarkDeficientRequest lists resource ids to highlight on a funnel.
type MarkDeficientRequest struct {
	ResourceIDs []string `json:"resource_ids" binding:"required,min=1,dive,required"`
}

// FunnelResponse represents a funnel in API responses
type FunnelResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ResourceIDs []string        `json:"resource_ids"`
	Flow        json.RawMessage `json:"flow,omitempty"`
	IsDeployed  bool            `json:"is_deployed"`
	DeployedAt  *time.Time      `json:"deployed_at,omitempty"`
	State       string          `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToFunnelResponse converts a funnel. The flow is embedded only when it is
// valid JSON; otherwise it is omitted.
func ToFunnelResponse(f *funnel.Funnel, state funnel.State) FunnelResponse {
	resp := FunnelResponse{
		ID:          f.ID(),
		Name:        f.Name(),
		ResourceIDs: f.AssignedIDs(),
		IsDeployed:  f.IsDeployed(),
		DeployedAt:  f.DeployedAt(),
		State:       state.String(),
		CreatedAt:   f.CreatedAt(),
		UpdatedAt:   f.UpdatedAt(),
	}
	if f.HasFlow() && json.Valid(f.Flow()) {
		resp.Flow = json.RawMessage(f.Flow())
	}
	return resp
}

// ReadinessResponse is the gate state with deficiency detail.
type ReadinessResponse struct {
	FunnelID     string   `json:"funnel_id"`
	State        string   `json:"state"`
	Locked       bool     `json:"locked"`
	Deficiencies []string `json:"deficiencies"`
	Total        int      `json:"total"`
	Paid         int      `json:"paid"`
	Free         int      `json:"free"`
	Highlighted  []string `json:"highlighted"`
}

func ToReadinessResponse(funnelID string, r funnel.Readiness) ReadinessResponse {
	deficiencies := make([]string, 0, len(r.Deficiencies))
	for _, d := range r.Deficiencies {
		deficiencies = append(deficiencies, string(d))
	}
	highlighted := r.Highlighted
	if highlighted == nil {
		highlighted = []string{}
	}
	return ReadinessResponse{
		FunnelID:     funnelID,
		State:        r.State.String(),
		Locked:       r.Locked(),
		Deficiencies: deficiencies,
		Total:        r.Total,
		Paid:         r.Paid,
		Free:         r.Free,
		Highlighted:  highlighted,
	}
}

// AssignableResponse is one row of a funnel's assignment picker.
type AssignableResponse struct {
	ResourceID    string `json:"resource_id"`
	Name          string `json:"name"`
	ValueCategory string `json:"value_category"`
	Assigned      bool   `json:"assigned"`
	Busy          bool   `json:"busy"`
	CanAssign     bool   `json:"can_assign"`
	Reason        string `json:"reason,omitempty"`
}

func ToAssignableResponses(items []services.Assignable) []AssignableResponse {
	return mapper.MapSlice(items, func(a services.Assignable) AssignableResponse {
		return AssignableResponse{
			ResourceID:    a.Resource.ID(),
			Name:          a.Resource.Name(),
			ValueCategory: a.Resource.ValueCategory().String(),
			Assigned:      a.Assigned,
			Busy:          a.Busy,
			CanAssign:     a.CanAssign,
			Reason:        string(a.Reason),
		}
	})
}
