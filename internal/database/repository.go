package database

import (
	"context"

	"github.com/bargepoint/bargepoint/internal/database/models"
)

// BridgeAttemptFilter narrows and pages bridge attempt listings.
// Zero-valued fields are ignored.
type BridgeAttemptFilter struct {
	UserID  string
	CallSID string
	Outcome string
	Limit   int
	Offset  int
}

// CallEventFilter narrows and pages call event listings.
// Zero-valued fields are ignored.
type CallEventFilter struct {
	CallSID    string
	Conference string
	Status     string
	Limit      int
	Offset     int
}

// BridgeAttemptRepository journals bridge operations.
type BridgeAttemptRepository interface {
	Create(ctx context.Context, attempt *models.BridgeAttempt) error
	List(ctx context.Context, filter BridgeAttemptFilter) ([]models.BridgeAttempt, int, error)
	Count(ctx context.Context) (int64, error)
}

// CallEventRepository journals provider status callbacks.
type CallEventRepository interface {
	Create(ctx context.Context, event *models.CallEvent) error
	List(ctx context.Context, filter CallEventFilter) ([]models.CallEvent, int, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
