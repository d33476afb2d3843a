package faculty

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/attendance"
)

// SummaryRow is one student's aggregate attendance for the report view.
type SummaryRow struct {
	Email           string     `json:"email"`
	FullName        string     `json:"full_name"`
	RoomNumber      string     `json:"room_number"`
	TotalClasses    int64      `json:"total_classes"`
	AttendedClasses int64      `json:"attended_classes"`
	LastAttendance  *time.Time `json:"last_attendance"`
	Percentage      string     `json:"percentage"`
}

// PGRepo serves faculty credentials and the read-only reporting queries.
type PGRepo struct {
	db *sql.DB
}

// NewPGRepo creates the repo.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

// PasswordHash returns the stored bcrypt hash for a username.
func (r *PGRepo) PasswordHash(ctx context.Context, username string) (string, bool, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password FROM faculty WHERE username = $1`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// Students lists roster entries, optionally filtered by room.
func (r *PGRepo) Students(ctx context.Context, roomNumber string) ([]attendance.Student, error) {
	query := `SELECT email, full_name, room_number FROM students`
	args := []any{}
	if roomNumber != "" && roomNumber != "all" {
		query += ` WHERE room_number = $1`
		args = append(args, roomNumber)
	}
	query += ` ORDER BY full_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []attendance.Student
	for rows.Next() {
		var s attendance.Student
		if err := rows.Scan(&s.Email, &s.FullName, &s.RoomNumber); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// Rooms lists the distinct assigned room numbers.
func (r *PGRepo) Rooms(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT room_number FROM students
		WHERE room_number IS NOT NULL
		ORDER BY room_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// Summary aggregates per-student attendance, optionally filtered by room
// and/or a single calendar date (YYYY-MM-DD).
func (r *PGRepo) Summary(ctx context.Context, roomNumber, date string) ([]SummaryRow, error) {
	query := `
		SELECT ar.student_email,
		       COALESCE(s.full_name, 'Unknown Student'),
		       COALESCE(s.room_number, 'Not Assigned'),
		       COUNT(ar.attendance_date),
		       SUM(CASE WHEN ar.status = 'P' THEN 1 ELSE 0 END),
		       MAX(ar.attendance_date)
		FROM attendance_records ar
		LEFT JOIN students s ON ar.student_email = s.email
	`
	args := []any{}
	clauses := []string{}
	if roomNumber != "" && roomNumber != "all" {
		args = append(args, roomNumber)
		clauses = append(clauses, fmt.Sprintf(`COALESCE(s.room_number, 'Not Assigned') = $%d`, len(args)))
	}
	if date != "" {
		args = append(args, date)
		clauses = append(clauses, fmt.Sprintf(`ar.attendance_date = $%d`, len(args)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += `
		GROUP BY ar.student_email, s.full_name, s.room_number
		ORDER BY COALESCE(s.full_name, 'Unknown Student')
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SummaryRow
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.Email, &row.FullName, &row.RoomNumber,
			&row.TotalClasses, &row.AttendedClasses, &row.LastAttendance); err != nil {
			return nil, err
		}
		row.Percentage = percentage(row.AttendedClasses, row.TotalClasses)
		res = append(res, row)
	}
	return res, rows.Err()
}

func percentage(attended, total int64) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(attended)/float64(total)*100)
}
