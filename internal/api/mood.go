package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/mood"
)

// defaultHistoryLimit is how many daily logs the history endpoint returns
// when the client does not ask for a specific window.
const defaultHistoryLimit = 7

// maxHistoryLimit bounds the history window a client may request.
const maxHistoryLimit = 90

// moodStore is the slice of the mood store the handler needs.
type moodStore interface {
	SaveDailyLog(ctx context.Context, userID string, dl mood.DailyLog) (mood.SaveResult, error)
	LastLogs(ctx context.Context, userID string, limit int) ([]mood.DailyLog, error)
	Count(ctx context.Context, userID string) (int, error)
}

type moodHandler struct {
	store    moodStore
	insights dailyInsightService
	logger   log.Logger
}

type moodSaveRequest struct {
	Date       string             `json:"date"`
	CoreScores map[string]float64 `json:"core_scores"`
	DassToday  map[string]float64 `json:"dass_today"`
	CoreAvg    float64            `json:"core_avg"`
	DailyTotal float64            `json:"daily_total"`
}

// saveDaily handles POST /api/v1/mood/daily. Resubmitting the same date
// replaces the day's scores and bumps the submission count.
func (h *moodHandler) saveDaily(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required", h.logger)
		return
	}

	var req moodSaveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "JSON body required", h.logger)
		return
	}

	dl := mood.DailyLog{
		Date:       req.Date,
		CoreScores: req.CoreScores,
		DassToday:  req.DassToday,
		CoreAvg:    req.CoreAvg,
		DailyTotal: req.DailyTotal,
	}
	result, err := h.store.SaveDailyLog(r.Context(), userID, dl)
	if err != nil {
		if errors.Is(err, mood.ErrInvalidLog) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), h.logger)
			return
		}
		h.logger.Error("saving mood log", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "could not save mood log", h.logger)
		return
	}

	// The insight is an enrichment of the saved log; its failure never
	// fails the save.
	if _, err := h.insights.Generate(r.Context(), userID, dl); err != nil {
		h.logger.Warn("daily insight generation failed", "user_id", userID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":          true,
		"is_update":        result.IsUpdate,
		"submission_count": result.SubmissionCount,
	}, h.logger)
}

// history handles GET /api/v1/mood/history?limit=N, newest first.
func (h *moodHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required", h.logger)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 90", h.logger)
			return
		}
		limit = n
	}

	logs, err := h.store.LastLogs(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("loading mood history", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "could not load mood history", h.logger)
		return
	}

	total, err := h.store.Count(r.Context(), userID)
	if err != nil {
		h.logger.Error("counting mood logs", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "could not load mood history", h.logger)
		return
	}

	if logs == nil {
		logs = []mood.DailyLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"logs":    logs,
		"total":   total,
	}, h.logger)
}
