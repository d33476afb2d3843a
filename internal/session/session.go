package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// Session is a faculty-declared, room-scoped window during which attendance
// submissions are accepted. It transitions Active -> Ended exactly once.
type Session struct {
	ID            int64      `json:"id"`
	SessionName   string     `json:"session_name"`
	RoomNumber    string     `json:"room_number"`
	StartedBy     string     `json:"started_by"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	IsActive      bool       `json:"is_active"`
	AttendeeCount int64      `json:"attendee_count"`
}

var (
	// ErrInvalid marks a start request with missing name or room.
	ErrInvalid = errors.New("session name and room number required")
	// ErrConflict marks a start that would break the concurrency or room invariant.
	ErrConflict = errors.New("session conflict")
	// ErrNotFound marks an end targeting a session that is not currently active.
	// Already-ended and nonexistent ids are deliberately indistinguishable.
	ErrNotFound = errors.New("session not found or already ended")
)

// Store is the registry's persistence dependency. Start and EndAll must be
// mutually serialized by the implementation so that no session can be started
// while a sweep is in progress.
type Store interface {
	Active(ctx context.Context) ([]Session, error)
	List(ctx context.Context) ([]Session, error)
	Start(ctx context.Context, s Session, maxActive int) (Session, error)
	End(ctx context.Context, id int64, at time.Time) error
	EndAll(ctx context.Context, at time.Time) (int64, error)
}

// Registry tracks which room-scoped sessions are open and enforces the
// bounds on concurrent sessions.
type Registry struct {
	store     Store
	cache     *StatusCache
	maxActive int
	now       func() time.Time
}

// NewRegistry creates a registry. cache may be nil; now defaults to time.Now.
func NewRegistry(store Store, cache *StatusCache, maxActive int, now func() time.Time) *Registry {
	if maxActive <= 0 {
		maxActive = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, cache: cache, maxActive: maxActive, now: now}
}

// Active returns currently open sessions, most recent first, read directly
// from the store. The eligibility engine depends on this freshness.
func (r *Registry) Active(ctx context.Context) ([]Session, error) {
	return r.store.Active(ctx)
}

// List returns all sessions with attendee counts, most recent first.
func (r *Registry) List(ctx context.Context) ([]Session, error) {
	return r.store.List(ctx)
}

// Status returns active sessions through the short-TTL cache. Reporting
// pollers hit this; only eventual visibility is promised.
func (r *Registry) Status(ctx context.Context) ([]Session, error) {
	if r.cache != nil {
		if sessions, ok := r.cache.Get(ctx); ok {
			return sessions, nil
		}
	}
	sessions, err := r.store.Active(ctx)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(ctx, sessions)
	}
	return sessions, nil
}

// Start opens a new session. Fails with ErrInvalid on blank inputs and
// ErrConflict when the active-session bound is reached or the room is busy.
func (r *Registry) Start(ctx context.Context, name, room, startedBy string) (Session, error) {
	name = strings.TrimSpace(name)
	room = strings.TrimSpace(room)
	if name == "" || room == "" {
		return Session{}, ErrInvalid
	}
	s := Session{
		SessionName: name,
		RoomNumber:  room,
		StartedBy:   startedBy,
		StartTime:   r.now(),
		IsActive:    true,
	}
	created, err := r.store.Start(ctx, s, r.maxActive)
	if err != nil {
		return Session{}, err
	}
	r.invalidate(ctx)
	return created, nil
}

// End closes the targeted session if it is currently active.
func (r *Registry) End(ctx context.Context, id int64) error {
	if err := r.store.End(ctx, id, r.now()); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// EndAll closes every active session and returns how many were ended.
func (r *Registry) EndAll(ctx context.Context) (int64, error) {
	n, err := r.store.EndAll(ctx, r.now())
	if err != nil {
		return 0, err
	}
	r.invalidate(ctx)
	return n, nil
}

func (r *Registry) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		log.Printf("session status cache invalidate failed: %v", err)
	}
}
