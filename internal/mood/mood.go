// Package mood stores daily mood quiz logs and produces the short mood
// summary the chat chain folds into its system prompt.
//
// One log per user per day: repeat submissions on the same date replace the
// scores but keep the first submission time and bump the submission count.
package mood

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stressease/stressease/internal/log"
)

// DateFormat is the wire and storage format for log dates.
const DateFormat = "2006-01-02"

// Core score and DASS subscale keys used across the quiz payload.
const (
	ScoreMood       = "mood"
	ScoreEnergy     = "energy"
	ScoreSleep      = "sleep"
	ScoreStress     = "stress"
	DassDepression  = "depression"
	DassAnxiety     = "anxiety"
	DassStressToday = "stress"
)

// ErrInvalidLog indicates a daily log payload failed validation.
var ErrInvalidLog = errors.New("invalid mood log")

// DailyLog is one day's quiz submission. Scores are on a 1-5 scale.
type DailyLog struct {
	Date             string             `json:"date"`
	CoreScores       map[string]float64 `json:"core_scores"`
	DassToday        map[string]float64 `json:"dass_today"`
	CoreAvg          float64            `json:"core_avg"`
	DailyTotal       float64            `json:"daily_total"` // Sum of all quiz answers (12-60)
	SubmissionCount  int                `json:"submission_count"`
	FirstSubmittedAt time.Time          `json:"first_submitted_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// SaveResult reports what a save did.
type SaveResult struct {
	IsUpdate        bool `json:"is_update"`
	SubmissionCount int  `json:"submission_count"`
}

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const saveLogSQL = `INSERT INTO mood_logs (user_id, log_date, core_scores, dass_today, core_avg, daily_total, submission_count, first_submitted_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
	ON CONFLICT (user_id, log_date) DO UPDATE SET
		core_scores = EXCLUDED.core_scores,
		dass_today = EXCLUDED.dass_today,
		core_avg = EXCLUDED.core_avg,
		daily_total = EXCLUDED.daily_total,
		submission_count = mood_logs.submission_count + 1,
		updated_at = EXCLUDED.updated_at
	RETURNING submission_count`

const lastLogsSQL = `SELECT log_date, core_scores, dass_today, core_avg, daily_total, submission_count, first_submitted_at, updated_at
	FROM mood_logs
	WHERE user_id = $1
	ORDER BY log_date DESC
	LIMIT $2`

const logByDateSQL = `SELECT log_date, core_scores, dass_today, core_avg, daily_total, submission_count, first_submitted_at, updated_at
	FROM mood_logs
	WHERE user_id = $1 AND log_date = $2`

const countLogsSQL = `SELECT count(*) FROM mood_logs WHERE user_id = $1`

// Store is the PostgreSQL-backed daily mood log store.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
	now    func() time.Time
}

// NewStore creates a mood log Store. db is typically a *pgxpool.Pool.
func NewStore(db querier, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// SaveDailyLog stores the day's quiz submission, replacing any earlier
// submission for the same date. The date defaults to today when empty
// (callers normally pass the client's local date for timezone accuracy).
func (s *Store) SaveDailyLog(ctx context.Context, userID string, dl DailyLog) (SaveResult, error) {
	if dl.Date == "" {
		dl.Date = s.now().UTC().Format(DateFormat)
	}
	date, err := time.Parse(DateFormat, dl.Date)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: bad date %q: %w", ErrInvalidLog, dl.Date, err)
	}
	if len(dl.CoreScores) == 0 {
		return SaveResult{}, fmt.Errorf("%w: core_scores is required", ErrInvalidLog)
	}

	core, err := json.Marshal(dl.CoreScores)
	if err != nil {
		return SaveResult{}, fmt.Errorf("marshaling core scores: %w", err)
	}
	dass, err := json.Marshal(orEmpty(dl.DassToday))
	if err != nil {
		return SaveResult{}, fmt.Errorf("marshaling dass scores: %w", err)
	}

	var count int
	err = s.db.QueryRow(ctx, saveLogSQL,
		userID, date, core, dass, dl.CoreAvg, dl.DailyTotal, s.now().UTC()).Scan(&count)
	if err != nil {
		return SaveResult{}, fmt.Errorf("saving mood log for %s on %s: %w", userID, dl.Date, err)
	}

	s.logger.Debug("saved mood log", "user_id", userID, "date", dl.Date, "submission", count)
	return SaveResult{IsUpdate: count > 1, SubmissionCount: count}, nil
}

// LastLogs returns the user's most recent daily logs, newest first.
func (s *Store) LastLogs(ctx context.Context, userID string, limit int) ([]DailyLog, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := s.db.Query(ctx, lastLogsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading mood logs for %s: %w", userID, err)
	}
	defer rows.Close()

	var logs []DailyLog
	for rows.Next() {
		dl, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mood log rows: %w", err)
	}
	return logs, nil
}

// LogByDate returns the log for one date, or false when none exists.
func (s *Store) LogByDate(ctx context.Context, userID, dateStr string) (DailyLog, bool, error) {
	date, err := time.Parse(DateFormat, dateStr)
	if err != nil {
		return DailyLog{}, false, fmt.Errorf("%w: bad date %q: %w", ErrInvalidLog, dateStr, err)
	}

	row := s.db.QueryRow(ctx, logByDateSQL, userID, date)
	dl, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DailyLog{}, false, nil
	}
	if err != nil {
		return DailyLog{}, false, err
	}
	return dl, true, nil
}

// Count returns the total number of daily logs for a user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, countLogsSQL, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting mood logs for %s: %w", userID, err)
	}
	return count, nil
}

// scanLog reads one log row. Works for both pgx.Row and pgx.Rows.
func scanLog(row interface{ Scan(dest ...any) error }) (DailyLog, error) {
	var (
		dl   DailyLog
		date time.Time
		core []byte
		dass []byte
	)
	err := row.Scan(&date, &core, &dass, &dl.CoreAvg, &dl.DailyTotal, &dl.SubmissionCount, &dl.FirstSubmittedAt, &dl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DailyLog{}, err
		}
		return DailyLog{}, fmt.Errorf("scanning mood log row: %w", err)
	}
	dl.Date = date.Format(DateFormat)

	if err := json.Unmarshal(core, &dl.CoreScores); err != nil {
		return DailyLog{}, fmt.Errorf("unmarshaling core scores: %w", err)
	}
	if err := json.Unmarshal(dass, &dl.DassToday); err != nil {
		return DailyLog{}, fmt.Errorf("unmarshaling dass scores: %w", err)
	}
	return dl, nil
}

func orEmpty(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
