package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/stressease/stressease/internal/insight"
	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/mood"
)

// insightService is the slice of the insight service the handler needs.
type insightService interface {
	Report(ctx context.Context, userID string) (insight.Report, error)
	AvgQuizScore(ctx context.Context, userID string) (float64, int, error)
	PredictStress(ctx context.Context, avgMood float64, chatCount int, avgQuiz float64) insight.Forecast
}

// dailyInsightService generates and serves per-day quiz insights.
type dailyInsightService interface {
	Generate(ctx context.Context, userID string, dl mood.DailyLog) (insight.DailyInsight, error)
	Latest(ctx context.Context, userID string) (insight.DailyInsight, error)
}

type insightHandler struct {
	svc    insightService
	daily  dailyInsightService
	logger log.Logger
}

// latestInsight handles GET /api/v1/analytics/insights, returning the
// insight generated from the user's most recent quiz submission.
func (h *insightHandler) latestInsight(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required", h.logger)
		return
	}

	ins, err := h.daily.Latest(r.Context(), userID)
	if err != nil {
		if errors.Is(err, insight.ErrNoInsight) {
			writeError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND",
				"no insights yet; complete a daily quiz first", h.logger)
			return
		}
		h.logger.Error("loading daily insight", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "could not load insights", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"insights": ins,
	}, h.logger)
}

// summary handles GET /api/v1/analytics/summary.
func (h *insightHandler) summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required", h.logger)
		return
	}

	report, err := h.svc.Report(r.Context(), userID)
	if err != nil {
		if errors.Is(err, insight.ErrNoData) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success":    false,
				"error_code": "INSUFFICIENT_DATA",
				"message":    "complete at least one daily quiz before viewing analytics",
				"metadata":   map[string]any{"days_analyzed": 0, "data_quality": "none"},
			}, h.logger)
			return
		}
		h.logger.Error("building analytics report", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "could not build analytics report", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, report, h.logger)
}

// forecastResponse wraps a forecast with provenance of the quiz average.
type forecastResponse struct {
	insight.Forecast
	DataQuality struct {
		QuizDataDays   int    `json:"quizDataDays"`
		QuizDataSource string `json:"quizDataSource"`
	} `json:"dataQuality"`
}

// predictStress handles GET /api/v1/predict/stress. The client supplies its
// 7-day mood average and chat count; the quiz average is computed from
// stored logs, falling back to a client-supplied value when no logs exist.
func (h *insightHandler) predictStress(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required", h.logger)
		return
	}

	q := r.URL.Query()

	avgMood, err := strconv.ParseFloat(q.Get("avgMoodScore"), 64)
	if err != nil || avgMood < 1.0 || avgMood > 5.0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "avgMoodScore must be a number between 1.0 and 5.0", h.logger)
		return
	}

	chatCount, err := strconv.Atoi(q.Get("chatCount"))
	if err != nil || chatCount < 0 || chatCount > 999 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "chatCount must be an integer between 0 and 999", h.logger)
		return
	}

	avgQuiz, quizDays, err := h.svc.AvgQuizScore(r.Context(), userID)
	source := "backend"
	if err != nil || quizDays == 0 {
		if err != nil {
			h.logger.Warn("backend quiz average failed, trying client value", "user_id", userID, "error", err)
		}
		raw := q.Get("avgQuizScore")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "INSUFFICIENT_DATA",
				"complete at least one daily quiz before requesting predictions", h.logger)
			return
		}
		clientQuiz, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || clientQuiz < 0 || clientQuiz > 60 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "avgQuizScore must be a number between 0 and 60", h.logger)
			return
		}
		avgQuiz = clientQuiz
		source = "frontend"
	}

	forecast := h.svc.PredictStress(r.Context(), avgMood, chatCount, avgQuiz)

	resp := forecastResponse{Forecast: forecast}
	resp.DataQuality.QuizDataDays = quizDays
	resp.DataQuality.QuizDataSource = source

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"prediction": resp,
	}, h.logger)
}
