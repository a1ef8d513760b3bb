package bridge

import (
	"context"
	"fmt"
	"log/slog"
)

// Dialer places the invitee's leg into a conference.
type Dialer struct {
	gw          Gateway
	callerID    string
	ringTimeout int
	logger      *slog.Logger
}

// DialerConfig carries the invitee dial settings.
type DialerConfig struct {
	// CallerID is the From address presented to the invitee.
	CallerID string
	// RingTimeoutSeconds is how long the invitee's endpoint may ring.
	RingTimeoutSeconds int
}

// NewDialer creates an invitee dialer over the given gateway.
func NewDialer(gw Gateway, cfg DialerConfig, logger *slog.Logger) *Dialer {
	return &Dialer{
		gw:          gw,
		callerID:    cfg.CallerID,
		ringTimeout: cfg.RingTimeoutSeconds,
		logger:      logger.With("subsystem", "dial"),
	}
}

// Dial creates the invitee's outbound leg. The leg joins the conference on
// answer; Dial returns as soon as the provider accepts the call, it does not
// wait for the invitee to pick up. Failures wrap ErrDialFailed.
func (d *Dialer) Dial(ctx context.Context, inv Invitee, conference string) (CallRef, error) {
	ref, err := d.gw.DialIntoConference(ctx, conference, DialParams{
		To:          inv.Address,
		From:        d.callerID,
		RingTimeout: d.ringTimeout,
	})
	if err != nil {
		return CallRef{}, fmt.Errorf("%w: calling %s: %v", ErrDialFailed, inv.Address, err)
	}

	d.logger.Info("invitee leg created",
		"call_id", ref.ID,
		"conference", conference,
		"to", inv.Address,
	)
	return ref, nil
}
