package events

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind names the mutation an Outcome reports on.
type OutcomeKind string

const (
	OutcomeCreated      OutcomeKind = "created"
	OutcomeUpdated      OutcomeKind = "updated"
	OutcomeDeleted      OutcomeKind = "deleted"
	OutcomeAssigned     OutcomeKind = "assigned"
	OutcomeUnassigned   OutcomeKind = "unassigned"
	OutcomeGenerated    OutcomeKind = "generated"
	OutcomeDeployed     OutcomeKind = "deployed"
	OutcomeTakenOffline OutcomeKind = "taken_offline"
)

// OutcomeEventPrefix prefixes every Outcome event type, e.g. "outcome.created".
const OutcomeEventPrefix = "outcome."

const outcomeSchemaVersion = 1

// ResourceSnapshot is the resource as it looked when the outcome was recorded.
type ResourceSnapshot struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ValueCategory string `json:"value_category"`
	OriginKind    string `json:"origin_kind"`
}

// Outcome reports a completed or failed mutation. It is the only thing the
// feedback layer ever learns about business operations.
type Outcome struct {
	BaseEvent
	MerchantID string            `json:"merchant_id"`
	Kind       OutcomeKind       `json:"kind"`
	Success    bool              `json:"success"`
	Resource   *ResourceSnapshot `json:"resource,omitempty"`
	FunnelID   string            `json:"funnel_id,omitempty"`
	FunnelName string            `json:"funnel_name,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// NewOutcome stamps a fresh outcome. aggregateID is the resource id for
// catalog outcomes and the funnel id for funnel outcomes.
func NewOutcome(merchantID string, kind OutcomeKind, aggregateID string, at time.Time) *Outcome {
	return &Outcome{
		BaseEvent: BaseEvent{
			EventID:     uuid.NewString(),
			AggregateID: aggregateID,
			EventType:   OutcomeEventPrefix + string(kind),
			OccurredAt:  at,
			Version:     outcomeSchemaVersion,
		},
		MerchantID: merchantID,
		Kind:       kind,
		Success:    true,
	}
}

// Failed marks the outcome as a failure with its error kind and message.
func (o *Outcome) Failed(errorKind, message string) *Outcome {
	o.Success = false
	o.ErrorKind = errorKind
	o.Message = message
	return o
}
