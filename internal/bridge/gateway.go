package bridge

import "context"

// DialParams describes the outbound leg that brings the invitee into a
// conference.
type DialParams struct {
	// To is the invitee's dial target, passed through to the provider verbatim.
	To string
	// From is the caller ID presented to the invitee.
	From string
	// RingTimeout is how many seconds the invitee's endpoint may ring before
	// the attempt is abandoned.
	RingTimeout int
}

// ParticipantParams describes a party dialed straight into a conference by
// the provider's participant API rather than by call redirect.
type ParticipantParams struct {
	To   string
	From string
}

// Gateway is the narrow slice of the call-control provider the bridge needs.
// Implementations map provider failures onto ErrCallNotFound, ErrCallNotActive
// and ErrProviderTimeout so callers can branch with errors.Is.
type Gateway interface {
	// FetchCall returns the current state of one leg.
	FetchCall(ctx context.Context, id string) (CallRef, error)

	// ActiveChildren lists the in-progress legs spawned by the given parent,
	// oldest first.
	ActiveChildren(ctx context.Context, parentID string) ([]CallRef, error)

	// RedirectToConference replaces the leg's running script with one that
	// joins the named conference.
	RedirectToConference(ctx context.Context, callID, conference string) error

	// DialIntoConference creates a new outbound leg whose script joins the
	// named conference once answered.
	DialIntoConference(ctx context.Context, conference string, p DialParams) (CallRef, error)

	// AddParticipant dials an address directly into the named conference
	// through the provider's participant API.
	AddParticipant(ctx context.Context, conference string, p ParticipantParams) (CallRef, error)
}
