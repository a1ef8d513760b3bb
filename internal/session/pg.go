package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGRegistry reads turbo sessions from the dialer's PostgreSQL table. The
// dialer owns the table and its lifecycle; this side only ever reads, so
// there are no migrations here.
type PGRegistry struct {
	db *sql.DB
}

// OpenPG connects to the turbo session database.
func OpenPG(dsn string) (*PGRegistry, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("turbo session registry opened")
	return &PGRegistry{db: db}, nil
}

// Close closes the underlying database connection.
func (r *PGRegistry) Close() error {
	return r.db.Close()
}

// Lookup returns the user's live turbo session, or nil when there is none.
// A session is live while it is marked active and has not expired.
func (r *PGRegistry) Lookup(ctx context.Context, userID string) (*Session, error) {
	var (
		sess      Session
		expiresAt *time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, conference_name, call_sid, expires_at
		 FROM turbo_sessions
		 WHERE user_id = $1
		   AND active
		   AND (expires_at IS NULL OR expires_at > NOW())`,
		userID,
	).Scan(&sess.UserID, &sess.ConferenceName, &sess.CallSID, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying turbo session: %w", err)
	}

	if expiresAt != nil {
		sess.ExpiresAt = *expiresAt
	}
	return &sess, nil
}
