package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation   = "23505"
	deviceConstraint  = "uq_session_device"
	studentConstraint = "uq_session_student"
)

// PGStore persists students and attendance records in Postgres. It implements
// RosterStore and RecordStore.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates the store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Student returns the roster entry for an email, or nil when absent.
func (s *PGStore) Student(ctx context.Context, email string) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email, full_name, room_number
		FROM students WHERE email = $1
	`, email)
	var st Student
	if err := row.Scan(&st.Email, &st.FullName, &st.RoomNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// DeviceRecorded reports whether the device already holds a record in the session.
func (s *PGStore) DeviceRecorded(ctx context.Context, sessionID int64, deviceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM attendance_records WHERE session_id = $1 AND device_id = $2)
	`, sessionID, deviceID).Scan(&exists)
	return exists, err
}

// StudentRecorded reports whether the student already holds a record in the session.
func (s *PGStore) StudentRecorded(ctx context.Context, sessionID int64, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_email = $2)
	`, sessionID, email).Scan(&exists)
	return exists, err
}

// Insert writes a new record. Unique-constraint rejections come back as
// ErrDeviceDuplicate / ErrStudentDuplicate so the engine can report a
// duplicate instead of a server failure when a concurrent submission won.
func (s *PGStore) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(id, student_email, attendance_date, status, session_id, latitude, longitude, elevation, device_id, location_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, rec.ID, rec.StudentEmail, rec.Date, rec.Status, rec.SessionID,
		rec.Latitude, rec.Longitude, rec.Elevation, rec.DeviceID, rec.LocationName)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case deviceConstraint:
				return Record{}, fmt.Errorf("%w: %s", ErrDeviceDuplicate, rec.DeviceID)
			case studentConstraint:
				return Record{}, fmt.Errorf("%w: %s", ErrStudentDuplicate, rec.StudentEmail)
			}
		}
		return Record{}, err
	}
	return rec, nil
}
