package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/optimistic"
)

// Gate exposes funnel readiness and drives generation and deployment.
type Gate struct {
	board     *Board
	generator funnel.Generator
	deployer  funnel.Deployer
}

func NewGate(board *Board, generator funnel.Generator, deployer funnel.Deployer) *Gate {
	return &Gate{board: board, generator: generator, deployer: deployer}
}

// Readiness computes the funnel's current state and deficiencies.
func (g *Gate) Readiness(funnelID string) (funnel.Readiness, error) {
	b := g.board
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.stateLocked(funnelID)
	if err != nil {
		return funnel.Readiness{}, err
	}
	return b.readinessLocked(st), nil
}

// IsLocked reports whether the funnel is generating or deployed. Unknown
// funnels are not locked.
func (g *Gate) IsLocked(funnelID string) bool {
	r, err := g.Readiness(funnelID)
	return err == nil && r.Locked()
}

// MarkDeficient highlights resource ids the presentation layer wants to
// flag. The marks are dropped wholesale once the funnel meets its
// requirements, so marking a ready funnel has no lasting effect.
func (g *Gate) MarkDeficient(funnelID string, resourceIDs ...string) (funnel.Readiness, error) {
	b := g.board
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.stateLocked(funnelID)
	if err != nil {
		return funnel.Readiness{}, err
	}
	next := st.highlighted.Clone()
	next.AddAll(resourceIDs)
	st.highlighted = next
	return b.readinessLocked(st), nil
}

// Generate runs the generation service over the funnel's resources. The
// resource set is frozen while the call is in flight; on failure the
// funnel returns to the state it had before.
func (g *Gate) Generate(ctx context.Context, funnelID string) (funnel.Flow, error) {
	b := g.board
	var (
		st        *funnelState
		resources []*catalog.Resource
		name      = funnelID
	)

	flow, err := optimistic.Run(ctx, b.mu, optimistic.Mutation[funnel.Flow]{
		Apply: func() error {
			var err error
			if st, err = b.stateLocked(funnelID); err != nil {
				return err
			}
			name = st.funnel.Name()

			r := b.readinessLocked(st)
			switch {
			case r.Locked():
				return shared.NewError(shared.KindLocked, shared.EntityFunnel, name, nil)
			case st.busy.Len() > 0 || st.deploying || b.holdsMemberLocked(st):
				return shared.NewError(shared.KindBusy, shared.EntityFunnel, name, nil)
			case len(r.Deficiencies) > 0:
				// Also covers regenerating a funnel whose set has since become deficient.
				return shared.NewError(shared.KindInsufficient, shared.EntityFunnel, name, nil).
					WithDetail(joinDeficiencies(r.Deficiencies))
			}

			st.generating = true
			resources = b.resourcesLocked(st)
			return nil
		},
		Call: func(ctx context.Context) (funnel.Flow, error) {
			flow, err := g.generator.Generate(ctx, funnelID, resources)
			if err != nil {
				return nil, shared.NewError(shared.KindGenerationFailed, shared.EntityFunnel, name, err)
			}
			if flow.IsEmpty() {
				return nil, shared.NewError(shared.KindGenerationFailed, shared.EntityFunnel, name, nil).
					WithDetail("empty flow")
			}
			if err := b.repo.SaveFlow(ctx, funnelID, flow); err != nil {
				return nil, shared.FromPersistence(err, shared.EntityFunnel, name)
			}
			return flow, nil
		},
		Confirm: func(flow funnel.Flow) {
			st.generating = false
			st.funnel.SetFlow(flow, b.now())
		},
		Revert: func(error) {
			st.generating = false
		},
	})

	o := events.NewOutcome(b.merchantID, events.OutcomeGenerated, funnelID, b.now())
	o.FunnelID = funnelID
	o.FunnelName = name

	if err != nil {
		opErr := classifyFunnel(err, name)
		b.logFailure("generate funnel", opErr, "funnel_id", funnelID)
		b.publish(o.Failed(string(opErr.Kind), opErr.Message()))
		return nil, opErr
	}

	b.logger.Infow("funnel generated", "funnel_id", funnelID, "resources", len(resources), "flow_bytes", len(flow))
	b.publish(o)
	return flow, nil
}

// Deploy makes a generated funnel live.
func (g *Gate) Deploy(ctx context.Context, funnelID string) error {
	return g.transition(ctx, funnelID, true)
}

// TakeOffline returns a deployed funnel to GENERATED.
func (g *Gate) TakeOffline(ctx context.Context, funnelID string) error {
	return g.transition(ctx, funnelID, false)
}

func (g *Gate) transition(ctx context.Context, funnelID string, deploy bool) error {
	b := g.board
	var (
		st   *funnelState
		name = funnelID
	)

	want, kind, op := funnel.StateDeployed, events.OutcomeTakenOffline, "take funnel offline"
	if deploy {
		want, kind, op = funnel.StateGenerated, events.OutcomeDeployed, "deploy funnel"
	}

	_, err := optimistic.Run(ctx, b.mu, optimistic.Mutation[struct{}]{
		Apply: func() error {
			var err error
			if st, err = b.stateLocked(funnelID); err != nil {
				return err
			}
			name = st.funnel.Name()

			if st.deploying || st.busy.Len() > 0 || b.holdsMemberLocked(st) {
				return shared.NewError(shared.KindBusy, shared.EntityFunnel, name, nil)
			}
			r := b.readinessLocked(st)
			if r.State == funnel.StateGenerating {
				return shared.NewError(shared.KindLocked, shared.EntityFunnel, name, nil)
			}
			if r.State != want {
				return shared.NewError(shared.KindInvalidState, shared.EntityFunnel, name, nil).
					WithDetail(fmt.Sprintf("funnel is %s, needs %s", r.State, want))
			}
			st.deploying = true
			return nil
		},
		Call: func(ctx context.Context) (struct{}, error) {
			var err error
			if deploy {
				err = g.deployer.Deploy(ctx, funnelID)
			} else {
				err = g.deployer.TakeOffline(ctx, funnelID)
			}
			return struct{}{}, err
		},
		Confirm: func(struct{}) {
			st.deploying = false
			st.funnel.SetDeployed(deploy, b.now())
		},
		Revert: func(error) {
			st.deploying = false
		},
	})

	o := events.NewOutcome(b.merchantID, kind, funnelID, b.now())
	o.FunnelID = funnelID
	o.FunnelName = name

	if err != nil {
		opErr := classifyFunnel(err, name)
		b.logFailure(op, opErr, "funnel_id", funnelID)
		b.publish(o.Failed(string(opErr.Kind), opErr.Message()))
		return opErr
	}

	b.logger.Infow(op+" succeeded", "funnel_id", funnelID)
	b.publish(o)
	return nil
}

func classifyFunnel(err error, name string) *shared.OperationError {
	if opErr, ok := shared.AsOperationError(err); ok {
		return opErr
	}
	return shared.FromPersistence(err, shared.EntityFunnel, name)
}

func joinDeficiencies(ds []funnel.Deficiency) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}
