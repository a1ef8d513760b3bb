package bridge

// CallStatus is the provider-side lifecycle state of a single call leg.
type CallStatus string

// Provider call statuses as they appear on the wire.
const (
	StatusQueued     CallStatus = "queued"
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusBusy       CallStatus = "busy"
	StatusFailed     CallStatus = "failed"
	StatusCanceled   CallStatus = "canceled"
)

// CallRef identifies one leg of a call as the provider knows it.
type CallRef struct {
	// ID is the provider's unique identifier for the leg.
	ID string
	// ParentID is set when this leg was spawned by another leg's dial verb,
	// and empty for legs the provider created directly.
	ParentID string
	// Direction is the provider's view of who initiated the leg
	// ("inbound", "outbound-api", "outbound-dial").
	Direction string
	// Status is the leg's current lifecycle state.
	Status CallStatus
	From   string
	To     string
}

// Active reports whether the leg is answered and carrying media.
func (c CallRef) Active() bool {
	return c.Status == StatusInProgress
}

// HasParent reports whether the leg was spawned by another leg.
func (c CallRef) HasParent() bool {
	return c.ParentID != ""
}

// ExternalAddress returns the address of the remote party on this leg:
// the caller for inbound legs, the called party for outbound legs.
func (c CallRef) ExternalAddress() string {
	if c.Inbound() {
		return c.From
	}
	return c.To
}

// Inbound reports whether the remote party initiated the leg.
func (c CallRef) Inbound() bool {
	return c.Direction == "inbound"
}

// LegRole names which party a leg carries within a bridge attempt.
type LegRole string

const (
	// RoleBrowser is the employee's softphone leg.
	RoleBrowser LegRole = "browser"
	// RoleLead is the external party's leg.
	RoleLead LegRole = "lead"
	// RoleInvitee is the colleague being pulled into the call.
	RoleInvitee LegRole = "invitee"
)

// Invitee is the colleague to add to an ongoing call. Address is an opaque
// provider dial target (a client identifier or an E.164 number); the bridge
// never inspects it.
type Invitee struct {
	Address     string
	DisplayName string
}
