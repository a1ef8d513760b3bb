package database

import (
	"context"
	"testing"
	"time"

	"github.com/bargepoint/bargepoint/internal/database/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.Close()

	// Reopening must not re-apply migrations.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("unexpected error on reopen: %v", err)
	}
	defer db.Close()

	var applied int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied migration, got %d", applied)
	}
}

func TestBridgeAttemptCreateAndList(t *testing.T) {
	db := openTestDB(t)
	repo := NewBridgeAttemptRepository(db)
	ctx := context.Background()

	attempt := &models.BridgeAttempt{
		UserID:         "user-1",
		CallSID:        "CA100",
		Conference:     "barge-CA100-1700000000000-abc",
		Mode:           "fresh",
		Topology:       "outbound",
		InviteeAddress: "+15550001234",
		InviteeCallSID: "CA200",
		Outcome:        "ok",
		DurationMS:     843,
		CreatedAt:      time.Now().UTC(),
	}
	if err := repo.Create(ctx, attempt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt.ID == 0 {
		t.Error("expected Create to set the attempt ID")
	}

	attempts, total, err := repo.List(ctx, BridgeAttemptFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}

	got := attempts[0]
	if got.UserID != "user-1" {
		t.Errorf("expected user %q, got %q", "user-1", got.UserID)
	}
	if got.CallSID != "CA100" {
		t.Errorf("expected call sid %q, got %q", "CA100", got.CallSID)
	}
	if got.Outcome != "ok" {
		t.Errorf("expected outcome %q, got %q", "ok", got.Outcome)
	}
	if got.DurationMS != 843 {
		t.Errorf("expected duration 843, got %d", got.DurationMS)
	}
	if got.CreatedAt.Unix() != attempt.CreatedAt.Unix() {
		t.Errorf("expected created_at %v, got %v", attempt.CreatedAt, got.CreatedAt)
	}
}

func TestBridgeAttemptListFilters(t *testing.T) {
	db := openTestDB(t)
	repo := NewBridgeAttemptRepository(db)
	ctx := context.Background()

	seed := []*models.BridgeAttempt{
		{UserID: "user-1", CallSID: "CA1", Mode: "fresh", InviteeAddress: "+1555", Outcome: "ok", CreatedAt: time.Now().UTC()},
		{UserID: "user-1", CallSID: "CA2", Mode: "fresh", InviteeAddress: "+1555", Outcome: "partial", CreatedAt: time.Now().UTC()},
		{UserID: "user-2", CallSID: "CA3", Mode: "turbo", InviteeAddress: "+1555", Outcome: "ok", CreatedAt: time.Now().UTC()},
	}
	for _, a := range seed {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	attempts, total, err := repo.List(ctx, BridgeAttemptFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(attempts) != 2 {
		t.Errorf("expected 2 attempts for user-1, got total=%d len=%d", total, len(attempts))
	}

	attempts, total, err = repo.List(ctx, BridgeAttemptFilter{UserID: "user-1", Outcome: "partial"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(attempts) != 1 {
		t.Fatalf("expected 1 partial attempt for user-1, got total=%d len=%d", total, len(attempts))
	}
	if attempts[0].CallSID != "CA2" {
		t.Errorf("expected call sid %q, got %q", "CA2", attempts[0].CallSID)
	}

	attempts, total, err = repo.List(ctx, BridgeAttemptFilter{CallSID: "CA3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(attempts) != 1 {
		t.Fatalf("expected 1 attempt for CA3, got total=%d len=%d", total, len(attempts))
	}
	if attempts[0].Mode != "turbo" {
		t.Errorf("expected mode %q, got %q", "turbo", attempts[0].Mode)
	}
}

func TestBridgeAttemptListPagination(t *testing.T) {
	db := openTestDB(t)
	repo := NewBridgeAttemptRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := &models.BridgeAttempt{
			UserID:         "user-1",
			CallSID:        "CA" + string(rune('A'+i)),
			Mode:           "fresh",
			InviteeAddress: "+1555",
			Outcome:        "ok",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	attempts, total, err := repo.List(ctx, BridgeAttemptFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected page of 2, got %d", len(attempts))
	}
	// Newest first.
	if attempts[0].CallSID != "CAE" {
		t.Errorf("expected newest attempt first, got %q", attempts[0].CallSID)
	}

	attempts, _, err = repo.List(ctx, BridgeAttemptFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("expected final page of 1, got %d", len(attempts))
	}
}

func TestBridgeAttemptCount(t *testing.T) {
	db := openTestDB(t)
	repo := NewBridgeAttemptRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	for i := 0; i < 3; i++ {
		a := &models.BridgeAttempt{
			UserID: "user-1", CallSID: "CA1", Mode: "fresh",
			InviteeAddress: "+1555", Outcome: "ok", CreatedAt: time.Now().UTC(),
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestCallEventCreateAndList(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallEventRepository(db)
	ctx := context.Background()

	event := &models.CallEvent{
		CallSID:    "CA300",
		Conference: "barge-CA100-1700000000000-abc",
		Status:     "in-progress",
		From:       "+15550001111",
		To:         "+15550002222",
		Sequence:   2,
		ReceivedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID == 0 {
		t.Error("expected Create to set the event ID")
	}

	events, total, err := repo.List(ctx, CallEventFilter{CallSID: "CA300"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(events) != 1 {
		t.Fatalf("expected 1 event, got total=%d len=%d", total, len(events))
	}

	got := events[0]
	if got.Status != "in-progress" {
		t.Errorf("expected status %q, got %q", "in-progress", got.Status)
	}
	if got.Sequence != 2 {
		t.Errorf("expected sequence 2, got %d", got.Sequence)
	}
	if got.Conference != event.Conference {
		t.Errorf("expected conference %q, got %q", event.Conference, got.Conference)
	}
}

func TestCallEventListFilters(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallEventRepository(db)
	ctx := context.Background()

	seed := []*models.CallEvent{
		{CallSID: "CA1", Conference: "conf-1", Status: "ringing", ReceivedAt: time.Now().UTC()},
		{CallSID: "CA1", Conference: "conf-1", Status: "completed", ReceivedAt: time.Now().UTC()},
		{CallSID: "CA2", Conference: "conf-2", Status: "ringing", ReceivedAt: time.Now().UTC()},
	}
	for _, e := range seed {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	events, total, err := repo.List(ctx, CallEventFilter{Conference: "conf-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Errorf("expected 2 events for conf-1, got total=%d len=%d", total, len(events))
	}

	events, total, err = repo.List(ctx, CallEventFilter{Status: "ringing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Errorf("expected 2 ringing events, got total=%d len=%d", total, len(events))
	}

	events, total, err = repo.List(ctx, CallEventFilter{CallSID: "CA2", Status: "ringing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(events) != 1 {
		t.Fatalf("expected 1 event, got total=%d len=%d", total, len(events))
	}
	if events[0].Conference != "conf-2" {
		t.Errorf("expected conference %q, got %q", "conf-2", events[0].Conference)
	}
}

func TestCallEventCount(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallEventRepository(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		e := &models.CallEvent{CallSID: "CA1", Status: "ringing", ReceivedAt: time.Now().UTC()}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestCallEventCountByStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallEventRepository(db)
	ctx := context.Background()

	seed := []string{"ringing", "ringing", "answered", "completed"}
	for _, status := range seed {
		e := &models.CallEvent{CallSID: "CA1", Status: status, ReceivedAt: time.Now().UTC()}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]int64{"ringing": 2, "answered": 1, "completed": 1}
	if len(counts) != len(want) {
		t.Fatalf("expected %d statuses, got %d: %v", len(want), len(counts), counts)
	}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("expected %d %s events, got %d", n, status, counts[status])
		}
	}
}
