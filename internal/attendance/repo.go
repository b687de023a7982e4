package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateSession writes a new session.
func (r *Repository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, code, teacher_id, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.Code, s.TeacherID, s.CreatedAt, s.ExpiresAt, s.IsActive)
	return err
}

// FindActiveByCode returns the newest active session with the given code, or
// nil. Expiry is the caller's concern; is_active only filters sessions a
// teacher has closed.
func (r *Repository) FindActiveByCode(ctx context.Context, code string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, teacher_id, created_at, expires_at, is_active
		FROM attendance_sessions
		WHERE code = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, code)
	var s Session
	if err := row.Scan(&s.ID, &s.Code, &s.TeacherID, &s.CreatedAt, &s.ExpiresAt, &s.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// RecordExists reports whether the student is already marked for the session.
func (r *Repository) RecordExists(ctx context.Context, sessionID, studentID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// LatestRecord returns the student's most recent mark across all sessions,
// or nil.
func (r *Repository) LatestRecord(ctx context.Context, studentID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, student_id, student_email, student_roll_number, marked_at, status
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY marked_at DESC
		LIMIT 1
	`, studentID)
	var rec Record
	if err := row.Scan(&rec.SessionID, &rec.StudentID, &rec.StudentEmail, &rec.StudentRollNumber, &rec.MarkedAt, &rec.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRecord writes a mark. The composite primary key makes the insert a
// no-op when the student is already marked; the bool reports whether a row
// was actually written.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (session_id, student_id, student_email, student_roll_number, marked_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, rec.SessionID, rec.StudentID, rec.StudentEmail, rec.StudentRollNumber, rec.MarkedAt, rec.Status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SessionsByTeacher returns a teacher's sessions, newest first.
func (r *Repository) SessionsByTeacher(ctx context.Context, teacherID string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, teacher_id, created_at, expires_at, is_active
		FROM attendance_sessions
		WHERE teacher_id = $1
		ORDER BY created_at DESC
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Code, &s.TeacherID, &s.CreatedAt, &s.ExpiresAt, &s.IsActive); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RecordsBySession returns the marks for a session, newest first.
func (r *Repository) RecordsBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, student_id, student_email, student_roll_number, marked_at, status
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY marked_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RecordsByStudentSince returns the student's marks at or after since.
func (r *Repository) RecordsByStudentSince(ctx context.Context, studentID string, since time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, student_id, student_email, student_roll_number, marked_at, status
		FROM attendance_records
		WHERE student_id = $1 AND marked_at >= $2
		ORDER BY marked_at ASC
	`, studentID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &rec.StudentEmail, &rec.StudentRollNumber, &rec.MarkedAt, &rec.Status); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
