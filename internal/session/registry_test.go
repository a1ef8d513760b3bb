package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRegistryLookup(t *testing.T) {
	r := NewMemoryRegistry()
	r.Put(&Session{UserID: "user-1", ConferenceName: "turbo-room-1", CallSID: "CA1"})

	sess, err := r.Lookup(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil {
		t.Fatal("expected a session, got nil")
	}
	if sess.ConferenceName != "turbo-room-1" {
		t.Errorf("expected conference turbo-room-1, got %q", sess.ConferenceName)
	}
}

func TestMemoryRegistryLookupUnknownUser(t *testing.T) {
	r := NewMemoryRegistry()

	sess, err := r.Lookup(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil session, got %+v", sess)
	}
}

func TestMemoryRegistryExpiredSessionDropped(t *testing.T) {
	r := NewMemoryRegistry()
	r.Put(&Session{
		UserID:         "user-1",
		ConferenceName: "turbo-room-1",
		ExpiresAt:      time.Now().Add(-time.Second),
	})

	sess, err := r.Lookup(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != nil {
		t.Errorf("expected expired session to be dropped, got %+v", sess)
	}

	// The expired entry is gone entirely, not just hidden.
	r.mu.RLock()
	_, still := r.sessions["user-1"]
	r.mu.RUnlock()
	if still {
		t.Error("expired session still stored after lookup")
	}
}

func TestMemoryRegistryEnd(t *testing.T) {
	r := NewMemoryRegistry()
	r.Put(&Session{UserID: "user-1", ConferenceName: "turbo-room-1"})
	r.End("user-1")

	sess, err := r.Lookup(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != nil {
		t.Errorf("expected session gone after End, got %+v", sess)
	}
}

func TestMemoryRegistryReplace(t *testing.T) {
	r := NewMemoryRegistry()
	r.Put(&Session{UserID: "user-1", ConferenceName: "turbo-room-1"})
	r.Put(&Session{UserID: "user-1", ConferenceName: "turbo-room-2"})

	sess, err := r.Lookup(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil || sess.ConferenceName != "turbo-room-2" {
		t.Errorf("expected replacement session turbo-room-2, got %+v", sess)
	}
}

func TestMemoryRegistryCleanExpired(t *testing.T) {
	r := NewMemoryRegistry()
	r.Put(&Session{UserID: "user-1", ConferenceName: "a", ExpiresAt: time.Now().Add(-time.Minute)})
	r.Put(&Session{UserID: "user-2", ConferenceName: "b", ExpiresAt: time.Now().Add(time.Hour)})
	r.Put(&Session{UserID: "user-3", ConferenceName: "c"})

	if removed := r.CleanExpired(); removed != 1 {
		t.Errorf("expected 1 removed session, got %d", removed)
	}

	for _, user := range []string{"user-2", "user-3"} {
		sess, err := r.Lookup(context.Background(), user)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess == nil {
			t.Errorf("session for %s unexpectedly removed", user)
		}
	}
}
