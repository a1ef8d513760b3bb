package database

import (
	"context"
	"fmt"

	"github.com/bargepoint/bargepoint/internal/database/models"
)

type bridgeAttemptRepo struct {
	db *DB
}

// NewBridgeAttemptRepository returns a SQLite-backed BridgeAttemptRepository.
func NewBridgeAttemptRepository(db *DB) BridgeAttemptRepository {
	return &bridgeAttemptRepo{db: db}
}

func (r *bridgeAttemptRepo) Create(ctx context.Context, attempt *models.BridgeAttempt) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO bridge_attempts (
			user_id, call_sid, conference, mode, topology,
			invitee_address, invitee_call_sid, outcome, error,
			duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.UserID, attempt.CallSID, attempt.Conference, attempt.Mode,
		attempt.Topology, attempt.InviteeAddress, attempt.InviteeCallSID,
		attempt.Outcome, attempt.Error, attempt.DurationMS, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting bridge attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading bridge attempt id: %w", err)
	}
	attempt.ID = id

	return nil
}

func (r *bridgeAttemptRepo) List(ctx context.Context, filter BridgeAttemptFilter) ([]models.BridgeAttempt, int, error) {
	where := "1=1"
	var args []any

	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.CallSID != "" {
		where += " AND call_sid = ?"
		args = append(args, filter.CallSID)
	}
	if filter.Outcome != "" {
		where += " AND outcome = ?"
		args = append(args, filter.Outcome)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM bridge_attempts WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting bridge attempts: %w", err)
	}

	query := `SELECT id, user_id, call_sid, conference, mode, topology,
		invitee_address, invitee_call_sid, outcome, error, duration_ms, created_at
		FROM bridge_attempts WHERE ` + where + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing bridge attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.BridgeAttempt
	for rows.Next() {
		var a models.BridgeAttempt
		err := rows.Scan(&a.ID, &a.UserID, &a.CallSID, &a.Conference, &a.Mode,
			&a.Topology, &a.InviteeAddress, &a.InviteeCallSID, &a.Outcome,
			&a.Error, &a.DurationMS, &a.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning bridge attempt row: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating bridge attempt rows: %w", err)
	}

	return attempts, total, nil
}

func (r *bridgeAttemptRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bridge_attempts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting bridge attempts: %w", err)
	}
	return count, nil
}
