package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/mood"
)

// reportDays is the analytics window.
const reportDays = 7

// ErrNoData indicates the user has no mood logs to analyze.
var ErrNoData = errors.New("no mood data available")

// LogSource supplies recent daily logs for analysis.
type LogSource interface {
	LastLogs(ctx context.Context, userID string, limit int) ([]mood.DailyLog, error)
}

// Prediction is the rule-based wellbeing outlook with its explanation.
type Prediction struct {
	State      string `json:"state"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

// Metadata describes how much data backed a report.
type Metadata struct {
	DaysAnalyzed   int    `json:"days_analyzed"`
	DataQuality    string `json:"data_quality"`
	Recommendation string `json:"recommendation,omitempty"`
}

// Report is the full analytics summary for a user.
type Report struct {
	Summary    Summary    `json:"summary"`
	Trends     Trends     `json:"trends"`
	Prediction Prediction `json:"prediction"`
	Metadata   Metadata   `json:"metadata"`
}

// Service computes analytics reports and stress forecasts.
//
// The prediction rules are deterministic; the model only writes the
// human-facing explanation and, for forecasts, the probability estimate.
// Every model call has a deterministic fallback.
type Service struct {
	g         *genkit.Genkit
	logs      LogSource
	logger    log.Logger
	modelName string
}

// NewService creates an insight Service. g may be nil; all model-backed
// pieces then use their deterministic fallbacks.
func NewService(g *genkit.Genkit, logs LogSource, modelName string, logger log.Logger) (*Service, error) {
	if logs == nil {
		return nil, errors.New("log source is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{g: g, logs: logs, logger: logger, modelName: modelName}, nil
}

// Report analyzes the user's last week of mood logs. Returns ErrNoData when
// the user has no logs at all.
func (s *Service) Report(ctx context.Context, userID string) (Report, error) {
	logs, err := s.logs.LastLogs(ctx, userID, reportDays)
	if err != nil {
		return Report{}, fmt.Errorf("loading mood logs: %w", err)
	}
	if len(logs) == 0 {
		return Report{}, ErrNoData
	}

	summary := CalculateSummary(logs)
	trends := AnalyzeTrends(logs)
	state, confidence := PredictState(summary, trends, len(logs))
	reason := s.explain(ctx, state, confidence, summary, trends, logs)

	meta := Metadata{DaysAnalyzed: len(logs), DataQuality: QualityComplete}
	if len(logs) < reportDays {
		meta.DataQuality = QualityPartial
		meta.Recommendation = "Complete more daily quizzes for better insights"
	}

	return Report{
		Summary:    summary,
		Trends:     trends,
		Prediction: Prediction{State: state, Confidence: confidence, Reason: reason},
		Metadata:   meta,
	}, nil
}

// explain asks the model for a human-relatable explanation of the
// rule-derived state. Any failure falls back to the template for the state.
func (s *Service) explain(ctx context.Context, state, confidence string, summary Summary, trends Trends, logs []mood.DailyLog) string {
	if s.g == nil {
		return templateExplanation(state)
	}

	var recent strings.Builder
	for i, dl := range logs {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&recent, "\n  %d day(s) ago: mood %.0f/5, stress %.0f/5",
			i+1, moodScore(dl), stressScore(dl))
	}

	prompt := fmt.Sprintf(`The prediction is already determined: state %q with %s confidence.

User's data over %d day(s): average mood %s/5, average stress %s/5, dominant issue %s, mood trend %s, stress trend %s.
Recent days:%s

Write a supportive 2-3 sentence explanation of why this state was predicted.
Mention the specific mood and stress patterns, use warm non-clinical language,
and include one gentle suggestion (chatbot, breathing exercises, or keep it up).
Respond with only the explanation text.`,
		strings.ReplaceAll(state, "_", " "), confidence,
		len(logs), summary.AvgMood, summary.AvgStress, summary.DominantIssue,
		trends.Mood, trends.Stress, recent.String())

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithSystem("You explain mental wellness analytics to app users."),
		ai.WithPrompt("%s", prompt),
		ai.WithModelName(s.modelName),
	)
	if err != nil {
		s.logger.Warn("explanation generation failed, using template", "state", state, "error", err)
		return templateExplanation(state)
	}

	text := strings.TrimSpace(resp.Text())
	if len(text) < 20 {
		return templateExplanation(state)
	}
	return text
}
