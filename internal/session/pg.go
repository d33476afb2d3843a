package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// registryLockKey is the advisory lock serializing Start against EndAll.
const registryLockKey = 0x726f6c6c // "roll"

// PGStore persists sessions in Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a session store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Active returns active sessions with attendee counts, newest first.
func (s *PGStore) Active(ctx context.Context) ([]Session, error) {
	return s.query(ctx, `
		SELECT s.id, s.session_name, s.room_number, s.started_by, s.start_time, s.end_time, s.is_active,
		       COUNT(ar.id) AS attendee_count
		FROM attendance_sessions s
		LEFT JOIN attendance_records ar ON ar.session_id = s.id
		WHERE s.is_active = TRUE
		GROUP BY s.id
		ORDER BY s.start_time DESC
	`)
}

// List returns all sessions with attendee counts, newest first.
func (s *PGStore) List(ctx context.Context) ([]Session, error) {
	return s.query(ctx, `
		SELECT s.id, s.session_name, s.room_number, s.started_by, s.start_time, s.end_time, s.is_active,
		       COUNT(ar.id) AS attendee_count
		FROM attendance_sessions s
		LEFT JOIN attendance_records ar ON ar.session_id = s.id
		GROUP BY s.id
		ORDER BY s.start_time DESC
	`)
}

func (s *PGStore) query(ctx context.Context, q string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.SessionName, &sess.RoomNumber, &sess.StartedBy,
			&sess.StartTime, &sess.EndTime, &sess.IsActive, &sess.AttendeeCount); err != nil {
			return nil, err
		}
		res = append(res, sess)
	}
	return res, rows.Err()
}

// Start inserts a new active session after checking the concurrency bound and
// the one-session-per-room invariant inside a single transaction. The advisory
// lock keeps concurrent starts and sweeps from interleaving between the checks
// and the insert.
func (s *PGStore) Start(ctx context.Context, sess Session, maxActive int) (Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registryLockKey); err != nil {
		return Session{}, err
	}

	var active int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_sessions WHERE is_active = TRUE`).Scan(&active); err != nil {
		return Session{}, err
	}
	if active >= maxActive {
		return Session{}, fmt.Errorf("%w: maximum of %d concurrent sessions reached", ErrConflict, maxActive)
	}

	var roomBusy bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM attendance_sessions WHERE is_active = TRUE AND room_number = $1)`,
		sess.RoomNumber).Scan(&roomBusy); err != nil {
		return Session{}, err
	}
	if roomBusy {
		return Session{}, fmt.Errorf("%w: room %s already has an active session", ErrConflict, sess.RoomNumber)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (session_name, room_number, started_by, start_time, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id
	`, sess.SessionName, sess.RoomNumber, sess.StartedBy, sess.StartTime).Scan(&sess.ID); err != nil {
		return Session{}, err
	}

	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// End closes the session only if it is still active.
func (s *PGStore) End(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET is_active = FALSE, end_time = $2
		WHERE id = $1 AND is_active = TRUE
	`, id, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// EndAll sweeps every active session under the same advisory lock Start
// takes, so no session started concurrently can escape the sweep.
func (s *PGStore) EndAll(ctx context.Context, at time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registryLockKey); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET is_active = FALSE, end_time = $1
		WHERE is_active = TRUE
	`, at)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, tx.Commit()
}
