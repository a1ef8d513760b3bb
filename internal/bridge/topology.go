package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TopologyKind classifies the call shape a bridge attempt starts from.
type TopologyKind string

const (
	// TopologyOutbound is an employee-originated call: the browser leg is the
	// parent and the lead rides on a child leg it spawned.
	TopologyOutbound TopologyKind = "outbound"
	// TopologyInboundActiveParent is a lead-originated call: the lead's
	// inbound leg is the parent and the browser leg is its child.
	TopologyInboundActiveParent TopologyKind = "inbound_active_parent"
	// TopologyInboundOrphaned is a browser leg whose parent has already
	// ended. Only the browser leg can be moved.
	TopologyInboundOrphaned TopologyKind = "inbound_orphaned"
	// TopologyStandalone is a browser leg with no parent and no children.
	TopologyStandalone TopologyKind = "standalone"
)

// Topology names the legs that must be moved into a conference. Lead is nil
// for the single-leg shapes.
type Topology struct {
	Kind    TopologyKind
	Browser CallRef
	Lead    *CallRef
}

// Legs returns how many legs the shape will move.
func (t Topology) Legs() int {
	if t.Lead != nil {
		return 2
	}
	return 1
}

// Resolver classifies a live call into a Topology by walking its parent and
// child relationships at the provider.
type Resolver struct {
	gw     Gateway
	logger *slog.Logger
}

// NewResolver creates a topology resolver backed by the given gateway.
func NewResolver(gw Gateway, logger *slog.Logger) *Resolver {
	return &Resolver{
		gw:     gw,
		logger: logger.With("subsystem", "topology"),
	}
}

// Resolve fetches the triggering call and determines which legs belong to the
// conversation. The triggering call must be in progress; anything else
// returns ErrCallNotActive (or ErrCallNotFound if it does not exist at all).
func (r *Resolver) Resolve(ctx context.Context, callID string) (Topology, error) {
	call, err := r.gw.FetchCall(ctx, callID)
	if err != nil {
		return Topology{}, fmt.Errorf("fetching call %s: %w", callID, err)
	}
	if !call.Active() {
		return Topology{}, fmt.Errorf("%w: call %s is %s", ErrCallNotActive, callID, call.Status)
	}

	// An employee-originated call carries the conversation on a child leg the
	// provider dialed toward the lead.
	children, err := r.gw.ActiveChildren(ctx, call.ID)
	if err != nil {
		return Topology{}, fmt.Errorf("listing children of %s: %w", callID, err)
	}
	if len(children) > 0 {
		lead := children[0]
		if len(children) > 1 {
			r.logger.Warn("call has multiple active children, bridging the oldest",
				"call_id", call.ID,
				"children", len(children),
				"lead_id", lead.ID,
			)
		}
		return Topology{Kind: TopologyOutbound, Browser: call, Lead: &lead}, nil
	}

	// A lead-originated call leaves the browser leg as the child of the
	// lead's inbound leg. The parent may have hung up already.
	if call.HasParent() {
		parent, err := r.gw.FetchCall(ctx, call.ParentID)
		switch {
		case errors.Is(err, ErrCallNotFound):
			// The provider has forgotten the parent; treat it as ended.
			return Topology{Kind: TopologyInboundOrphaned, Browser: call}, nil
		case err != nil:
			return Topology{}, fmt.Errorf("fetching parent %s: %w", call.ParentID, err)
		}
		if parent.Active() {
			return Topology{Kind: TopologyInboundActiveParent, Browser: call, Lead: &parent}, nil
		}
		r.logger.Info("parent leg already ended",
			"call_id", call.ID,
			"parent_id", parent.ID,
			"parent_status", parent.Status,
		)
		return Topology{Kind: TopologyInboundOrphaned, Browser: call}, nil
	}

	return Topology{Kind: TopologyStandalone, Browser: call}, nil
}
