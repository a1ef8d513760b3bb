// Package models defines the journal records persisted by the database layer.
package models

import "time"

// BridgeAttempt is the journal record of one bridge operation, written
// after the orchestrator finishes regardless of outcome.
type BridgeAttempt struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	CallSID        string    `json:"call_sid"`
	Conference     string    `json:"conference"`
	Mode           string    `json:"mode"`
	Topology       string    `json:"topology,omitempty"`
	InviteeAddress string    `json:"invitee_address"`
	InviteeCallSID string    `json:"invitee_call_sid,omitempty"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// CallEvent is one provider status callback for a call leg. Sequence is
// the provider's own ordering counter, which survives out-of-order
// webhook delivery.
type CallEvent struct {
	ID         int64     `json:"id"`
	CallSID    string    `json:"call_sid"`
	Conference string    `json:"conference,omitempty"`
	Status     string    `json:"status"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Sequence   int       `json:"sequence"`
	ReceivedAt time.Time `json:"received_at"`
}
