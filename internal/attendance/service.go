package attendance

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"universe/internal/metrics"
)

// Session is a time-boxed attendance window opened by a teacher. Expiry is
// evaluated lazily at redemption time; IsActive is informational only.
type Session struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	TeacherID string    `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
}

// Record marks one student present in one session. The (SessionID,
// StudentID) pair is unique, which is the anti-double-mark guarantee.
type Record struct {
	SessionID         string    `json:"session_id"`
	StudentID         string    `json:"student_id"`
	StudentEmail      string    `json:"student_email"`
	StudentRollNumber string    `json:"student_roll_number"`
	MarkedAt          time.Time `json:"marked_at"`
	Status            string    `json:"status"`
}

var (
	ErrInvalidCode   = errors.New("invalid or expired code")
	ErrCodeExpired   = errors.New("code has expired")
	ErrAlreadyMarked = errors.New("attendance already marked for this session")
)

// CooldownError reports how long the student must wait before marking
// attendance again. The cooldown spans all sessions, not just one.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d minutes before marking attendance again", e.RemainingMinutes())
}

// RemainingMinutes rounds the wait up to whole minutes for display.
func (e *CooldownError) RemainingMinutes() int {
	return int((e.Remaining + time.Minute - 1) / time.Minute)
}

// Store is the persistence surface the service needs.
type Store interface {
	CreateSession(ctx context.Context, s Session) error
	FindActiveByCode(ctx context.Context, code string) (*Session, error)
	RecordExists(ctx context.Context, sessionID, studentID string) (bool, error)
	LatestRecord(ctx context.Context, studentID string) (*Record, error)
	InsertRecord(ctx context.Context, rec Record) (inserted bool, err error)
	SessionsByTeacher(ctx context.Context, teacherID string) ([]Session, error)
	RecordsBySession(ctx context.Context, sessionID string) ([]Record, error)
	RecordsByStudentSince(ctx context.Context, studentID string, since time.Time) ([]Record, error)
}

// Ledger is the wallet credit path used to award attendance points.
type Ledger interface {
	Credit(ctx context.Context, accountID string, amount int64, source string) error
}

// Service issues session codes and redeems them.
type Service struct {
	store    Store
	ledger   Ledger
	codeTTL  time.Duration
	cooldown time.Duration
	points   int64

	newID func() string
	now   func() time.Time
}

// NewService creates the attendance service.
func NewService(store Store, ledger Ledger, codeTTL, cooldown time.Duration, points int, newID func() string) *Service {
	if codeTTL <= 0 {
		codeTTL = 5 * time.Minute
	}
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &Service{
		store:    store,
		ledger:   ledger,
		codeTTL:  codeTTL,
		cooldown: cooldown,
		points:   int64(points),
		newID:    newID,
		now:      time.Now,
	}
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newCode returns a 6-character session code. Uniqueness is not enforced
// beyond the random draw; the 5-minute validity window keeps collisions
// harmless at this scale.
func newCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// IssueSession opens a new session for a teacher and returns it. Multiple
// sessions from the same teacher may be open at once.
func (s *Service) IssueSession(ctx context.Context, teacherID string) (*Session, error) {
	code, err := newCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	now := s.now().UTC()
	sess := Session{
		ID:        s.newID(),
		Code:      code,
		TeacherID: teacherID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
		IsActive:  true,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	metrics.AttendanceSessions.Inc()
	return &sess, nil
}

// Redeem marks a student present for the session matching code. Guards run
// in order: code lookup, expiry, duplicate, cooldown. The point credit
// happens after the mark is persisted; a credit failure is logged and the
// mark stands.
func (s *Service) Redeem(ctx context.Context, studentID, email, rollNumber, code string) (*Record, error) {
	sess, err := s.store.FindActiveByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidCode
	}

	now := s.now().UTC()
	if now.After(sess.ExpiresAt) {
		return nil, ErrCodeExpired
	}

	marked, err := s.store.RecordExists(ctx, sess.ID, studentID)
	if err != nil {
		return nil, err
	}
	if marked {
		return nil, ErrAlreadyMarked
	}

	// Cooldown is evaluated against the most recent mark across all
	// sessions, so switching teachers does not bypass it.
	last, err := s.store.LatestRecord(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		if elapsed := now.Sub(last.MarkedAt); elapsed < s.cooldown {
			return nil, &CooldownError{Remaining: s.cooldown - elapsed}
		}
	}

	rec := Record{
		SessionID:         sess.ID,
		StudentID:         studentID,
		StudentEmail:      email,
		StudentRollNumber: rollNumber,
		MarkedAt:          now,
		Status:            "present",
	}
	inserted, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost a race with a concurrent redemption of the same session.
		return nil, ErrAlreadyMarked
	}
	metrics.AttendanceMarks.Inc()

	if err := s.ledger.Credit(ctx, studentID, s.points, "Class Attendance"); err != nil {
		// The mark is authoritative even when the award fails transiently.
		log.Printf("attendance: credit for student %s failed: %v", studentID, err)
	}
	return &rec, nil
}

// Points returns the award per successful redemption.
func (s *Service) Points() int64 { return s.points }

// ListSessions returns a teacher's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, teacherID string) ([]Session, error) {
	return s.store.SessionsByTeacher(ctx, teacherID)
}

// ListRecords returns the marks for one session, newest first.
func (s *Service) ListRecords(ctx context.Context, sessionID string) ([]Record, error) {
	return s.store.RecordsBySession(ctx, sessionID)
}

// WeekSummary buckets a student's marks for the current Monday–Sunday week
// into a 7-bar histogram. Bars are capped at the display limit so the UI
// scale stays fixed.
type WeekSummary struct {
	WeekStart time.Time `json:"week_start"`
	Days      [7]int    `json:"days"`
	Total     int       `json:"total"`
}

// WeeklySummary aggregates the student's records for the current week.
// Records are stamped in UTC, so the window and the day buckets are
// computed in UTC too.
func (s *Service) WeeklySummary(ctx context.Context, studentID string, displayCap int) (*WeekSummary, error) {
	monday := weekStart(s.now().UTC())
	records, err := s.store.RecordsByStudentSince(ctx, studentID, monday)
	if err != nil {
		return nil, err
	}

	sum := WeekSummary{WeekStart: monday}
	for _, rec := range records {
		day := (int(rec.MarkedAt.UTC().Weekday()) + 6) % 7 // Monday = 0
		if displayCap <= 0 || sum.Days[day] < displayCap {
			sum.Days[day]++
		}
		sum.Total++
	}
	return &sum, nil
}

// weekStart returns midnight of the Monday of t's week, in t's location.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	monday := t.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}
