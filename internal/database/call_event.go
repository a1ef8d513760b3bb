package database

import (
	"context"
	"fmt"

	"github.com/bargepoint/bargepoint/internal/database/models"
)

type callEventRepo struct {
	db *DB
}

// NewCallEventRepository returns a SQLite-backed CallEventRepository.
func NewCallEventRepository(db *DB) CallEventRepository {
	return &callEventRepo{db: db}
}

func (r *callEventRepo) Create(ctx context.Context, event *models.CallEvent) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO call_events (
			call_sid, conference, status, from_address, to_address,
			sequence, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.CallSID, event.Conference, event.Status, event.From, event.To,
		event.Sequence, event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting call event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading call event id: %w", err)
	}
	event.ID = id

	return nil
}

func (r *callEventRepo) List(ctx context.Context, filter CallEventFilter) ([]models.CallEvent, int, error) {
	where := "1=1"
	var args []any

	if filter.CallSID != "" {
		where += " AND call_sid = ?"
		args = append(args, filter.CallSID)
	}
	if filter.Conference != "" {
		where += " AND conference = ?"
		args = append(args, filter.Conference)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM call_events WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting call events: %w", err)
	}

	query := `SELECT id, call_sid, conference, status, from_address, to_address,
		sequence, received_at
		FROM call_events WHERE ` + where + " ORDER BY received_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing call events: %w", err)
	}
	defer rows.Close()

	var events []models.CallEvent
	for rows.Next() {
		var e models.CallEvent
		err := rows.Scan(&e.ID, &e.CallSID, &e.Conference, &e.Status,
			&e.From, &e.To, &e.Sequence, &e.ReceivedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning call event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating call event rows: %w", err)
	}

	return events, total, nil
}

func (r *callEventRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM call_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting call events: %w", err)
	}
	return count, nil
}

func (r *callEventRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM call_events GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting call events by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning call event count row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call event count rows: %w", err)
	}

	return counts, nil
}
