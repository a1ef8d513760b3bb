// Package bridge merges a third party into an ongoing two-party call by
// relocating both existing legs into a named conference and dialing the
// invitee into it. Neither existing party hears anything while it happens.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bargepoint/bargepoint/internal/session"
)

// Bridge modes and outcomes as recorded in the journal and metrics.
const (
	ModeFresh = "fresh"
	ModeTurbo = "turbo"

	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// topologyResolver classifies a live call into the legs to move.
type topologyResolver interface {
	Resolve(ctx context.Context, callID string) (Topology, error)
}

// legRedirector moves a topology's legs into a conference.
type legRedirector interface {
	Redirect(ctx context.Context, topo Topology, conference string) RedirectOutcome
}

// inviteeDialer places the invitee's leg into a conference.
type inviteeDialer interface {
	Dial(ctx context.Context, inv Invitee, conference string) (CallRef, error)
}

// BridgeResult describes what a bridge attempt produced.
type BridgeResult struct {
	ConferenceName string
	// TurboMode is true when the legs were already parked in a standing
	// conference and only the invitee had to be dialed.
	TurboMode bool
	// Topology is the call shape that was bridged. Empty in turbo mode,
	// where no topology is resolved.
	Topology      TopologyKind
	InviteeCallID string
	// Moved lists the legs that reached the conference.
	Moved []MovedLeg
	// RedirectFailures lists the legs that were lost on the way in.
	RedirectFailures []*RedirectError
}

// Partial reports whether some leg was lost while the rest of the bridge
// went through.
func (r *BridgeResult) Partial() bool {
	return len(r.RedirectFailures) > 0
}

// Outcome classifies the result for journaling.
func (r *BridgeResult) Outcome() string {
	if r.Partial() {
		return OutcomePartial
	}
	return OutcomeOK
}

// Mode names the path the attempt took.
func (r *BridgeResult) Mode() string {
	if r.TurboMode {
		return ModeTurbo
	}
	return ModeFresh
}

// StatsSnapshot is a point-in-time copy of the orchestrator's counters.
type StatsSnapshot struct {
	TurboHits   uint64
	TurboMisses uint64
	TurboErrors uint64

	FreshOK      uint64
	FreshPartial uint64
	FreshFailed  uint64
	TurboOK      uint64
	TurboFailed  uint64

	BrowserMoved  uint64
	BrowserFailed uint64
	LeadMoved     uint64
	LeadFailed    uint64
	FallbackDials uint64

	InviteeDialsOK     uint64
	InviteeDialsFailed uint64
}

// Orchestrator runs bridge attempts end to end: turbo lookup, topology
// resolution, leg redirects and the invitee dial.
type Orchestrator struct {
	resolver   topologyResolver
	redirector legRedirector
	dialer     inviteeDialer
	sessions   session.Registry
	logger     *slog.Logger

	nowFunc   func() time.Time
	nonceFunc func() string

	mu    sync.Mutex
	stats StatsSnapshot
}

// NewOrchestrator wires the bridge pipeline together.
func NewOrchestrator(
	resolver *Resolver,
	redirector *Redirector,
	dialer *Dialer,
	sessions session.Registry,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver:   resolver,
		redirector: redirector,
		dialer:     dialer,
		sessions:   sessions,
		logger:     logger.With("subsystem", "bridge"),
		nowFunc:    time.Now,
		nonceFunc:  defaultNonce,
	}
}

// Bridge merges the invitee into the user's ongoing call.
//
// With a live turbo session the existing legs are already parked in a
// standing conference, so the invitee is dialed straight in and nothing else
// moves. Otherwise the triggering call's topology is resolved, both legs are
// redirected into a freshly named conference, and the invitee is dialed in
// afterwards.
//
// A lost leg does not stop the bridge: the result lists it under
// RedirectFailures and the invitee is still dialed. When the invitee dial
// itself fails the error wraps ErrDialFailed and the returned result still
// describes the conference and any legs already moved, since those redirects
// are not rolled back.
func (o *Orchestrator) Bridge(ctx context.Context, userID, callID string, inv Invitee) (*BridgeResult, error) {
	log := o.logger.With("user_id", userID, "call_id", callID)

	sess, err := o.sessions.Lookup(ctx, userID)
	if err != nil {
		o.bump(func(s *StatsSnapshot) { s.TurboErrors++ })
		return nil, fmt.Errorf("looking up turbo session: %w", err)
	}
	if sess != nil {
		o.bump(func(s *StatsSnapshot) { s.TurboHits++ })
		return o.bridgeTurbo(ctx, log, sess, inv)
	}
	o.bump(func(s *StatsSnapshot) { s.TurboMisses++ })

	topo, err := o.resolver.Resolve(ctx, callID)
	if err != nil {
		o.bump(func(s *StatsSnapshot) { s.FreshFailed++ })
		return nil, err
	}

	conference := o.conferenceName(callID)
	log.Info("bridging call into conference",
		"conference", conference,
		"topology", topo.Kind,
		"legs", topo.Legs(),
	)

	outcome := o.redirector.Redirect(ctx, topo, conference)
	o.recordRedirects(outcome)

	result := &BridgeResult{
		ConferenceName:   conference,
		Topology:         topo.Kind,
		Moved:            outcome.Moved,
		RedirectFailures: outcome.Failed,
	}

	ref, err := o.dialer.Dial(ctx, inv, conference)
	if err != nil {
		o.bump(func(s *StatsSnapshot) {
			s.InviteeDialsFailed++
			s.FreshFailed++
		})
		log.Error("invitee dial failed after redirects",
			"conference", conference,
			"moved", len(outcome.Moved),
			"error", err,
		)
		return result, err
	}
	result.InviteeCallID = ref.ID

	o.bump(func(s *StatsSnapshot) {
		s.InviteeDialsOK++
		if result.Partial() {
			s.FreshPartial++
		} else {
			s.FreshOK++
		}
	})

	if result.Partial() {
		log.Warn("bridge completed with lost legs",
			"conference", conference,
			"invitee_call_id", ref.ID,
			"lost", len(outcome.Failed),
		)
	} else {
		log.Info("bridge completed",
			"conference", conference,
			"invitee_call_id", ref.ID,
		)
	}

	return result, nil
}

// bridgeTurbo dials the invitee into a live turbo conference. The existing
// legs never move, so the conference name from the registry is used verbatim.
func (o *Orchestrator) bridgeTurbo(ctx context.Context, log *slog.Logger, sess *session.Session, inv Invitee) (*BridgeResult, error) {
	result := &BridgeResult{
		ConferenceName: sess.ConferenceName,
		TurboMode:      true,
	}

	ref, err := o.dialer.Dial(ctx, inv, sess.ConferenceName)
	if err != nil {
		o.bump(func(s *StatsSnapshot) {
			s.InviteeDialsFailed++
			s.TurboFailed++
		})
		return result, err
	}
	result.InviteeCallID = ref.ID

	o.bump(func(s *StatsSnapshot) {
		s.InviteeDialsOK++
		s.TurboOK++
	})
	log.Info("invitee added to turbo conference",
		"conference", sess.ConferenceName,
		"invitee_call_id", ref.ID,
	)
	return result, nil
}

// conferenceName derives a fresh conference name for a triggering call. The
// timestamp and nonce keep rapid repeated attempts on the same call apart;
// a retried bridge lands in a new room on purpose, because the provider
// offers no idempotent join.
func (o *Orchestrator) conferenceName(callID string) string {
	return fmt.Sprintf("barge-%s-%d-%s", callID, o.nowFunc().UnixMilli(), o.nonceFunc())
}

// defaultNonce returns a short random suffix for conference names.
func defaultNonce() string {
	return uuid.NewString()[:8]
}

// Stats returns a copy of the orchestrator's counters.
func (o *Orchestrator) Stats() StatsSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

func (o *Orchestrator) bump(f func(*StatsSnapshot)) {
	o.mu.Lock()
	f(&o.stats)
	o.mu.Unlock()
}

func (o *Orchestrator) recordRedirects(outcome RedirectOutcome) {
	o.bump(func(s *StatsSnapshot) {
		for _, m := range outcome.Moved {
			switch m.Role {
			case RoleBrowser:
				s.BrowserMoved++
			case RoleLead:
				s.LeadMoved++
			}
			if m.Redialed {
				s.FallbackDials++
			}
		}
		for _, f := range outcome.Failed {
			switch f.Role {
			case RoleBrowser:
				s.BrowserFailed++
			case RoleLead:
				s.LeadFailed++
			}
		}
	})
}
