package bridge

import (
	"context"
	"log/slog"
	"time"
)

// MovedLeg records one leg that reached the conference.
type MovedLeg struct {
	Role   LegRole
	CallID string
	// Redialed is true when the leg joined through the participant fallback
	// instead of a redirect. The original leg is gone in that case and the
	// recorded CallID is the replacement leg.
	Redialed bool
}

// RedirectOutcome reports which legs reached the conference and which were
// lost along the way.
type RedirectOutcome struct {
	Moved  []MovedLeg
	Failed []*RedirectError
}

// Complete reports whether every leg reached the conference.
func (o RedirectOutcome) Complete() bool {
	return len(o.Failed) == 0
}

// Redirector moves the legs of a resolved topology into a named conference,
// child leg before parent leg. Moving a parent first tears down the dialog
// that feeds its child, so the order is not negotiable.
type Redirector struct {
	gw           Gateway
	callerID     string
	settleDelay  time.Duration
	pollAttempts int
	pollInterval time.Duration
	logger       *slog.Logger
}

// RedirectorConfig carries the redirect timing knobs.
type RedirectorConfig struct {
	// CallerID is the From address used when a lost lead is re-dialed into
	// the conference.
	CallerID string
	// SettleDelay is the minimum wait after the first redirect before the
	// second leg is touched, and the wait before any retry.
	SettleDelay time.Duration
	// PollAttempts bounds how many times the first leg is re-fetched after
	// the settle delay to confirm it survived the move.
	PollAttempts int
	// PollInterval is the wait between those re-fetches.
	PollInterval time.Duration
}

// NewRedirector creates a redirector over the given gateway.
func NewRedirector(gw Gateway, cfg RedirectorConfig, logger *slog.Logger) *Redirector {
	return &Redirector{
		gw:           gw,
		callerID:     cfg.CallerID,
		settleDelay:  cfg.SettleDelay,
		pollAttempts: cfg.PollAttempts,
		pollInterval: cfg.PollInterval,
		logger:       logger.With("subsystem", "redirect"),
	}
}

// Redirect moves every leg of the topology into the conference. A leg that
// fails its redirect and its single retry is recorded in the outcome and the
// remaining legs are still attempted, so a partial result always names what
// was lost.
func (rd *Redirector) Redirect(ctx context.Context, topo Topology, conference string) RedirectOutcome {
	var out RedirectOutcome

	switch topo.Kind {
	case TopologyOutbound:
		// The lead rides on the child leg here and must move first.
		rd.moveLeg(ctx, &out, RoleLead, *topo.Lead, conference, false)
		rd.waitForSettle(ctx, topo.Lead.ID)
		rd.moveLeg(ctx, &out, RoleBrowser, topo.Browser, conference, false)

	case TopologyInboundActiveParent:
		// The browser leg is the child of the lead's inbound leg, so the
		// order flips: browser first, lead second. If the lead's redirect is
		// spent, the lead can still be called back into the conference.
		rd.moveLeg(ctx, &out, RoleBrowser, topo.Browser, conference, false)
		rd.waitForSettle(ctx, topo.Browser.ID)
		rd.moveLeg(ctx, &out, RoleLead, *topo.Lead, conference, true)

	case TopologyInboundOrphaned, TopologyStandalone:
		rd.moveLeg(ctx, &out, RoleBrowser, topo.Browser, conference, false)
	}

	return out
}

// moveLeg redirects one leg into the conference, retrying once after the
// settle delay. When the retry is also spent and fallbackDial is set, the
// remote party is re-dialed straight into the conference as a participant.
func (rd *Redirector) moveLeg(ctx context.Context, out *RedirectOutcome, role LegRole, call CallRef, conference string, fallbackDial bool) {
	err := rd.gw.RedirectToConference(ctx, call.ID, conference)
	if err != nil {
		rd.logger.Warn("leg redirect failed, retrying once",
			"role", role,
			"call_id", call.ID,
			"conference", conference,
			"error", err,
		)
		rd.sleep(ctx, rd.settleDelay)
		err = rd.gw.RedirectToConference(ctx, call.ID, conference)
	}
	if err == nil {
		out.Moved = append(out.Moved, MovedLeg{Role: role, CallID: call.ID})
		rd.logger.Info("leg redirected into conference",
			"role", role,
			"call_id", call.ID,
			"conference", conference,
		)
		return
	}

	if fallbackDial {
		ref, dialErr := rd.redialIntoConference(ctx, call, conference)
		if dialErr == nil {
			out.Moved = append(out.Moved, MovedLeg{Role: role, CallID: ref.ID, Redialed: true})
			rd.logger.Info("lost leg re-dialed into conference",
				"role", role,
				"old_call_id", call.ID,
				"call_id", ref.ID,
				"conference", conference,
			)
			return
		}
		rd.logger.Error("participant fallback failed",
			"role", role,
			"call_id", call.ID,
			"conference", conference,
			"error", dialErr,
		)
	}

	out.Failed = append(out.Failed, &RedirectError{Role: role, CallID: call.ID, Err: err})
	rd.logger.Error("leg lost during bridge",
		"role", role,
		"call_id", call.ID,
		"conference", conference,
		"error", err,
	)
}

// redialIntoConference calls the leg's remote party back and drops them
// straight into the conference.
func (rd *Redirector) redialIntoConference(ctx context.Context, call CallRef, conference string) (CallRef, error) {
	return rd.gw.AddParticipant(ctx, conference, ParticipantParams{
		To:   call.ExternalAddress(),
		From: rd.callerID,
	})
}

// waitForSettle holds off the second redirect until the provider has had time
// to land the first. After the baseline delay the first leg is re-fetched a
// bounded number of times; once it reports in-progress the second leg can
// move. A leg that reads as ended is logged and the bridge proceeds anyway,
// since waiting longer cannot bring it back.
func (rd *Redirector) waitForSettle(ctx context.Context, firstLegID string) {
	rd.sleep(ctx, rd.settleDelay)

	for attempt := 0; attempt < rd.pollAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}
		call, err := rd.gw.FetchCall(ctx, firstLegID)
		if err != nil {
			rd.logger.Debug("settle poll fetch failed",
				"call_id", firstLegID,
				"attempt", attempt+1,
				"error", err,
			)
			rd.sleep(ctx, rd.pollInterval)
			continue
		}
		if call.Active() {
			return
		}
		rd.logger.Warn("first leg no longer active after redirect",
			"call_id", firstLegID,
			"status", call.Status,
		)
		return
	}

	rd.logger.Debug("settle poll exhausted, proceeding", "call_id", firstLegID)
}

// sleep waits for the given duration or until the context ends.
func (rd *Redirector) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
