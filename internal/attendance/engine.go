package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/geofence"
	"rollcall/internal/session"
)

// Student is a roster entry. Rosters are immutable during the attendance flow.
type Student struct {
	Email      string  `json:"email"`
	FullName   string  `json:"full_name"`
	RoomNumber *string `json:"room_number"`
}

// Record is one admitted attendance submission. Records are written exactly
// once and never mutated.
type Record struct {
	ID           string
	StudentEmail string
	Date         time.Time
	Status       string
	SessionID    int64
	Latitude     float64
	Longitude    float64
	Elevation    *float64
	DeviceID     string
	LocationName string
	CreatedAt    time.Time
}

// Submission is a student's claim to be present.
type Submission struct {
	Email     string
	Latitude  float64
	Longitude float64
	Elevation *float64
	DeviceID  string
}

var (
	// ErrDeviceDuplicate is returned by RecordStore.Insert when the
	// (session, device) uniqueness constraint rejects the row.
	ErrDeviceDuplicate = errors.New("device already recorded for session")
	// ErrStudentDuplicate is the (session, student) counterpart.
	ErrStudentDuplicate = errors.New("student already recorded for session")
)

// SessionSource yields the currently open sessions, newest first. The engine
// re-reads it on every submission; active-session state is never cached here.
type SessionSource interface {
	Active(ctx context.Context) ([]session.Session, error)
}

// RosterStore looks up students by email. A missing student is (nil, nil).
type RosterStore interface {
	Student(ctx context.Context, email string) (*Student, error)
}

// RecordStore persists attendance records. Insert must be backed by unique
// constraints on (session, device) and (session, student); the engine's
// pre-checks only provide a friendlier fast path.
type RecordStore interface {
	DeviceRecorded(ctx context.Context, sessionID int64, deviceID string) (bool, error)
	StudentRecorded(ctx context.Context, sessionID int64, email string) (bool, error)
	Insert(ctx context.Context, rec Record) (Record, error)
}

// Engine makes the attendance-eligibility decision: whether a single
// submission may be admitted and recorded for the currently open sessions.
type Engine struct {
	sessions SessionSource
	roster   RosterStore
	records  RecordStore
	fence    *geofence.Evaluator
	loc      *time.Location
	now      func() time.Time
	newID    func() string
}

// NewEngine wires the decision pipeline. loc is the time zone attendance
// dates are computed in; now defaults to time.Now.
func NewEngine(sessions SessionSource, roster RosterStore, records RecordStore,
	fence *geofence.Evaluator, loc *time.Location, now func() time.Time, newID func() string) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		sessions: sessions,
		roster:   roster,
		records:  records,
		fence:    fence,
		loc:      loc,
		now:      now,
		newID:    newID,
	}
}

// Submit runs the ordered decision pipeline and commits at most one record.
// A non-nil error means an infrastructure failure; every business rejection
// arrives as a Decision with its code.
func (e *Engine) Submit(ctx context.Context, sub Submission) (Decision, error) {
	active, err := e.sessions.Active(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("load active sessions: %w", err)
	}
	if len(active) == 0 {
		return Decision{
			Code:    CodeNoActiveSession,
			Message: "No active attendance session. Please wait for faculty to start a session.",
		}, nil
	}

	match := e.fence.Evaluate(sub.Latitude, sub.Longitude, sub.Elevation)
	if !match.Allowed {
		return Decision{
			Code:    CodeLocationDenied,
			Message: "You must be within the university premises to mark attendance.",
		}, nil
	}

	student, err := e.roster.Student(ctx, sub.Email)
	if err != nil {
		return Decision{}, fmt.Errorf("look up student: %w", err)
	}
	if student == nil {
		return Decision{
			Code:    CodeStudentNotFound,
			Message: "Student email not found in the roster.",
		}, nil
	}

	target := sessionForRoom(active, student.RoomNumber)
	if target == nil {
		room := "Not Assigned"
		if student.RoomNumber != nil {
			room = *student.RoomNumber
		}
		return Decision{
			Code:    CodeRoomMismatch,
			Message: fmt.Sprintf("No active session is running for your room. You are assigned to Room %s.", room),
		}, nil
	}

	used, err := e.records.DeviceRecorded(ctx, target.ID, sub.DeviceID)
	if err != nil {
		return Decision{}, fmt.Errorf("check device: %w", err)
	}
	if used {
		return deviceUsedDecision(target.ID), nil
	}

	marked, err := e.records.StudentRecorded(ctx, target.ID, sub.Email)
	if err != nil {
		return Decision{}, fmt.Errorf("check student: %w", err)
	}
	if marked {
		return alreadyMarkedDecision(target.ID), nil
	}

	now := e.now().In(e.loc)
	rec := Record{
		ID:           e.id(),
		StudentEmail: sub.Email,
		Date:         time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc),
		Status:       "P",
		SessionID:    target.ID,
		Latitude:     sub.Latitude,
		Longitude:    sub.Longitude,
		Elevation:    sub.Elevation,
		DeviceID:     sub.DeviceID,
		LocationName: match.ZoneName,
	}
	if _, err := e.records.Insert(ctx, rec); err != nil {
		// The unique constraints are the source of truth; a race that slipped
		// past the pre-checks surfaces here as a duplicate, not a failure.
		switch {
		case errors.Is(err, ErrDeviceDuplicate):
			return deviceUsedDecision(target.ID), nil
		case errors.Is(err, ErrStudentDuplicate):
			return alreadyMarkedDecision(target.ID), nil
		}
		return Decision{}, fmt.Errorf("insert record: %w", err)
	}

	return Decision{
		Code:      CodeOK,
		Message:   fmt.Sprintf("Attendance marked for session: %s", target.SessionName),
		SessionID: target.ID,
		ZoneName:  match.ZoneName,
	}, nil
}

func (e *Engine) id() string {
	if e.newID != nil {
		return e.newID()
	}
	return ""
}

// sessionForRoom picks the active session matching the student's room. With a
// single-session deployment this reduces to a plain room comparison.
func sessionForRoom(active []session.Session, room *string) *session.Session {
	if room == nil {
		return nil
	}
	for i := range active {
		if active[i].RoomNumber == *room {
			return &active[i]
		}
	}
	return nil
}

func deviceUsedDecision(sessionID int64) Decision {
	return Decision{
		Code:      CodeDeviceUsed,
		Message:   "This device has already been used to mark attendance for this session.",
		SessionID: sessionID,
	}
}

func alreadyMarkedDecision(sessionID int64) Decision {
	return Decision{
		Code:      CodeAlreadyMarked,
		Message:   "You have already marked attendance for this session.",
		SessionID: sessionID,
	}
}
