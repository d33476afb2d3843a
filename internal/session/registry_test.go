package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeStore struct {
	sessions []Session
	nextID   int64
	startErr error
}

func (f *fakeStore) Active(ctx context.Context) ([]Session, error) {
	var active []Session
	for _, s := range f.sessions {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active, nil
}

func (f *fakeStore) List(ctx context.Context) ([]Session, error) {
	return f.sessions, nil
}

func (f *fakeStore) Start(ctx context.Context, s Session, maxActive int) (Session, error) {
	if f.startErr != nil {
		return Session{}, f.startErr
	}
	active, _ := f.Active(ctx)
	if len(active) >= maxActive {
		return Session{}, fmt.Errorf("%w: maximum of %d concurrent sessions reached", ErrConflict, maxActive)
	}
	for _, a := range active {
		if a.RoomNumber == s.RoomNumber {
			return Session{}, fmt.Errorf("%w: room %s already has an active session", ErrConflict, s.RoomNumber)
		}
	}
	f.nextID++
	s.ID = f.nextID
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeStore) End(ctx context.Context, id int64, at time.Time) error {
	for i, s := range f.sessions {
		if s.ID == id && s.IsActive {
			f.sessions[i].IsActive = false
			f.sessions[i].EndTime = &at
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) EndAll(ctx context.Context, at time.Time) (int64, error) {
	var n int64
	for i, s := range f.sessions {
		if s.IsActive {
			f.sessions[i].IsActive = false
			f.sessions[i].EndTime = &at
			n++
		}
	}
	return n, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStartSession(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	reg := NewRegistry(store, nil, 5, fixedClock(now))

	s, err := reg.Start(context.Background(), "  Morning Lecture  ", " ME-12 ", "prof.rao")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.SessionName != "Morning Lecture" || s.RoomNumber != "ME-12" {
		t.Fatalf("expected trimmed fields, got %q / %q", s.SessionName, s.RoomNumber)
	}
	if !s.StartTime.Equal(now) {
		t.Fatalf("expected start time %v, got %v", now, s.StartTime)
	}
	if !s.IsActive {
		t.Fatal("expected new session active")
	}
}

func TestStartSessionBlankInput(t *testing.T) {
	reg := NewRegistry(&fakeStore{}, nil, 5, nil)
	if _, err := reg.Start(context.Background(), "   ", "ME-12", "prof.rao"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for blank name, got %v", err)
	}
	if _, err := reg.Start(context.Background(), "Lecture", "", "prof.rao"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for blank room, got %v", err)
	}
}

func TestStartSessionMaxConcurrency(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry(store, nil, 5, fixedClock(time.Now()))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := reg.Start(ctx, "Lecture", fmt.Sprintf("R-%d", i), "prof.rao"); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if _, err := reg.Start(ctx, "Lecture", "R-6", "prof.rao"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict at the bound, got %v", err)
	}
	if active, _ := store.Active(ctx); len(active) != 5 {
		t.Fatalf("expected 5 active sessions, got %d", len(active))
	}
}

func TestStartSessionRoomBusy(t *testing.T) {
	reg := NewRegistry(&fakeStore{}, nil, 5, fixedClock(time.Now()))
	ctx := context.Background()

	if _, err := reg.Start(ctx, "First", "ME-12", "prof.rao"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := reg.Start(ctx, "Second", "ME-12", "prof.das"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for busy room, got %v", err)
	}
}

func TestEndSession(t *testing.T) {
	now := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	reg := NewRegistry(store, nil, 5, fixedClock(now))
	ctx := context.Background()

	s, err := reg.Start(ctx, "Lecture", "ME-12", "prof.rao")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := reg.End(ctx, s.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if store.sessions[0].IsActive {
		t.Fatal("expected session inactive after end")
	}
	if store.sessions[0].EndTime == nil || !store.sessions[0].EndTime.Equal(now) {
		t.Fatalf("expected end time %v, got %v", now, store.sessions[0].EndTime)
	}

	// Ending again is indistinguishable from a missing id.
	if err := reg.End(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat end, got %v", err)
	}
	if err := reg.End(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on unknown id, got %v", err)
	}
}

func TestEndAllSessions(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry(store, nil, 5, fixedClock(time.Now()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := reg.Start(ctx, "Lecture", fmt.Sprintf("R-%d", i), "prof.rao"); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	n, err := reg.EndAll(ctx)
	if err != nil {
		t.Fatalf("end all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 ended, got %d", n)
	}
	if active, _ := store.Active(ctx); len(active) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(active))
	}

	n, err = reg.EndAll(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 ended on second sweep, got %d (%v)", n, err)
	}
}

func TestSingleSessionVariant(t *testing.T) {
	reg := NewRegistry(&fakeStore{}, nil, 1, fixedClock(time.Now()))
	ctx := context.Background()

	if _, err := reg.Start(ctx, "Lecture", "ME-12", "prof.rao"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := reg.Start(ctx, "Other", "CS-101", "prof.das"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict with max 1, got %v", err)
	}
}
