package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stressease/stressease/internal/insight"
	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/mood"
)

const getInsightSQL = `SELECT insight, log_date, generated_at
	FROM daily_insights
	WHERE user_id = $1`

const putInsightSQL = `INSERT INTO daily_insights (user_id, log_date, insight, generated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE SET
		log_date = EXCLUDED.log_date,
		insight = EXCLUDED.insight,
		generated_at = EXCLUDED.generated_at`

// insightPayload is the JSONB wire shape of a stored insight. The date and
// generation time live in their own columns.
type insightPayload struct {
	DominantEmotion string   `json:"dominant_emotion"`
	Summary         string   `json:"summary"`
	ConfidenceScore float64  `json:"confidence_score"`
	MotivationQuote string   `json:"motivation_quote"`
	Suggestions     []string `json:"suggestions"`
}

// Insights is the PostgreSQL-backed store for each user's latest daily
// insight.
type Insights struct {
	db     querier
	logger log.Logger
}

// NewInsights creates an Insights store. db is typically a *pgxpool.Pool.
func NewInsights(db querier, logger log.Logger) (*Insights, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Insights{db: db, logger: logger}, nil
}

// SaveLatest stores or replaces the user's latest insight.
func (s *Insights) SaveLatest(ctx context.Context, userID string, ins insight.DailyInsight) error {
	date, err := time.Parse(mood.DateFormat, ins.Date)
	if err != nil {
		return fmt.Errorf("bad insight date %q: %w", ins.Date, err)
	}

	raw, err := json.Marshal(insightPayload{
		DominantEmotion: ins.DominantEmotion,
		Summary:         ins.Summary,
		ConfidenceScore: ins.ConfidenceScore,
		MotivationQuote: ins.MotivationQuote,
		Suggestions:     ins.Suggestions,
	})
	if err != nil {
		return fmt.Errorf("encoding daily insight: %w", err)
	}

	if _, err := s.db.Exec(ctx, putInsightSQL, userID, date, raw, ins.GeneratedAt); err != nil {
		return fmt.Errorf("saving daily insight for %s: %w", userID, err)
	}
	s.logger.Debug("saved daily insight", "user_id", userID, "date", ins.Date)
	return nil
}

// Latest returns the user's stored insight. The second return value is
// false when no insight exists.
func (s *Insights) Latest(ctx context.Context, userID string) (insight.DailyInsight, bool, error) {
	var (
		raw         []byte
		logDate     time.Time
		generatedAt time.Time
	)
	err := s.db.QueryRow(ctx, getInsightSQL, userID).Scan(&raw, &logDate, &generatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return insight.DailyInsight{}, false, nil
	}
	if err != nil {
		return insight.DailyInsight{}, false, fmt.Errorf("loading daily insight: %w", err)
	}

	var payload insightPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return insight.DailyInsight{}, false, fmt.Errorf("decoding daily insight: %w", err)
	}
	return insight.DailyInsight{
		Date:            logDate.Format(mood.DateFormat),
		DominantEmotion: payload.DominantEmotion,
		Summary:         payload.Summary,
		ConfidenceScore: payload.ConfidenceScore,
		MotivationQuote: payload.MotivationQuote,
		Suggestions:     payload.Suggestions,
		GeneratedAt:     generatedAt,
	}, true, nil
}
