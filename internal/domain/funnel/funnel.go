// Package funnel provides the Funnel aggregate together with the capacity
// policy and readiness evaluation that govern its resource set.
package funnel

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/orris-inc/storefront/internal/shared/utils/setutil"
)

// Flow is the opaque document returned by the generation service.
type Flow []byte

// IsEmpty reports whether f carries no flow. A JSON null counts as empty.
func (f Flow) IsEmpty() bool {
	t := bytes.TrimSpace(f)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// Funnel is a sales flow container. Its resource set is mutated only by the
// assignment coordinator; everything else here is read by the readiness gate.
type Funnel struct {
	id         string
	merchantID string
	name       string
	assigned   *setutil.Set[string]
	flow       Flow
	deployed   bool
	deployedAt *time.Time
	createdAt  time.Time
	updatedAt  time.Time
	version    int
}

func NewFunnel(id, merchantID, name string, now time.Time) (*Funnel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("funnel name is required")
	}
	if merchantID == "" {
		return nil, fmt.Errorf("merchant ID is required")
	}
	return &Funnel{
		id:         id,
		merchantID: merchantID,
		name:       name,
		assigned:   setutil.New[string](),
		createdAt:  now,
		updatedAt:  now,
		version:    1,
	}, nil
}

// ReconstructFunnel rebuilds a funnel from persistence.
func ReconstructFunnel(
	id, merchantID, name string,
	assigned []string,
	flow Flow,
	deployed bool,
	deployedAt *time.Time,
	createdAt, updatedAt time.Time,
	version int,
) *Funnel {
	return &Funnel{
		id:         id,
		merchantID: merchantID,
		name:       name,
		assigned:   setutil.New(assigned...),
		flow:       flow,
		deployed:   deployed,
		deployedAt: deployedAt,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
		version:    version,
	}
}

func (f *Funnel) ID() string             { return f.id }
func (f *Funnel) MerchantID() string     { return f.merchantID }
func (f *Funnel) Name() string           { return f.name }
func (f *Funnel) Flow() Flow             { return f.flow }
func (f *Funnel) HasFlow() bool          { return !f.flow.IsEmpty() }
func (f *Funnel) IsDeployed() bool       { return f.deployed }
func (f *Funnel) DeployedAt() *time.Time { return f.deployedAt }
func (f *Funnel) CreatedAt() time.Time   { return f.createdAt }
func (f *Funnel) UpdatedAt() time.Time   { return f.updatedAt }
func (f *Funnel) Version() int           { return f.version }

// AssignedIDs returns the assigned resource ids in ascending order.
func (f *Funnel) AssignedIDs() []string {
	return f.assigned.Sorted()
}

func (f *Funnel) HasResource(resourceID string) bool {
	return f.assigned.Has(resourceID)
}

func (f *Funnel) AssignedCount() int {
	return f.assigned.Len()
}

// AddResource adds resourceID and reports whether the set changed.
func (f *Funnel) AddResource(resourceID string) bool {
	if f.assigned.Has(resourceID) {
		return false
	}
	f.assigned.Add(resourceID)
	return true
}

// RemoveResource removes resourceID and reports whether the set changed.
func (f *Funnel) RemoveResource(resourceID string) bool {
	if !f.assigned.Has(resourceID) {
		return false
	}
	f.assigned.Remove(resourceID)
	return true
}

func (f *Funnel) SetFlow(flow Flow, now time.Time) {
	f.flow = flow
	f.updatedAt = now
}

func (f *Funnel) SetDeployed(deployed bool, now time.Time) {
	f.deployed = deployed
	if deployed {
		f.deployedAt = &now
	} else {
		f.deployedAt = nil
	}
	f.updatedAt = now
}

// Clone returns a deep copy safe to hand to readers.
func (f *Funnel) Clone() *Funnel {
	c := *f
	c.assigned = f.assigned.Clone()
	if f.flow != nil {
		c.flow = append(Flow(nil), f.flow...)
	}
	if f.deployedAt != nil {
		t := *f.deployedAt
		c.deployedAt = &t
	}
	return &c
}
