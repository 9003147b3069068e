package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stressease/stressease/internal/chat"
	"github.com/stressease/stressease/internal/crisis"
	"github.com/stressease/stressease/internal/log"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// defaultCrisisCountry is used when the client sends no country parameter.
const defaultCrisisCountry = "India"

// chatService is the slice of the session manager the chat handler needs.
type chatService interface {
	Resolve(ctx context.Context, userID, sessionID string) (*chat.Resolution, error)
	RecordTurn(userID, sessionID, userText, assistantText string, turnNumber int)
}

// crisisService resolves country crisis resources.
type crisisService interface {
	Resources(ctx context.Context, country string) (crisis.Resources, error)
}

type chatHandler struct {
	sessions      chatService
	crisis        crisisService
	maxMessageLen int
	logger        log.Logger
}

type chatMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatMessagePart struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
}

type chatMessageResponse struct {
	Success     bool            `json:"success"`
	UserMessage chatMessagePart `json:"user_message"`
	AIResponse  chatMessagePart `json:"ai_response"`
	SessionID   string          `json:"session_id"`
	Metadata    struct {
		MessageCount int `json:"message_count"`
	} `json:"metadata"`
}

// sendMessage handles POST /api/v1/chat/message. A missing session_id
// implicitly creates a session; an existing one resumes it with freshly
// loaded history.
func (h *chatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required", h.logger)
		return
	}

	var req chatMessageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "JSON body required", h.logger)
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "message cannot be empty", h.logger)
		return
	}
	if len(message) > h.maxMessageLen {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "message too long", h.logger)
		return
	}

	res, err := h.sessions.Resolve(r.Context(), userID, req.SessionID)
	if err != nil {
		h.logger.Error("resolving chat session",
			"user_id", userID,
			"session_id", req.SessionID,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "SERVER_ERROR", "could not initialize chat session", h.logger)
		return
	}

	reply, err := res.Chain.Generate(r.Context(), message, res.History)
	if err != nil {
		h.logger.Error("generating reply",
			"user_id", userID,
			"session_id", res.SessionID,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "SERVER_ERROR", "could not generate a reply", h.logger)
		return
	}

	turnNumber := len(res.History) / 2
	h.sessions.RecordTurn(userID, res.SessionID, message, reply, turnNumber)

	timestamp := time.Now().UTC().Format(time.RFC3339)
	resp := chatMessageResponse{
		Success: true,
		UserMessage: chatMessagePart{
			Content:   message,
			Timestamp: timestamp,
			Role:      chat.RoleUser,
		},
		AIResponse: chatMessagePart{
			Content:   reply,
			Timestamp: timestamp,
			Role:      chat.RoleAssistant,
		},
		SessionID: res.SessionID,
	}
	resp.Metadata.MessageCount = res.MessageCount + 1

	writeJSON(w, http.StatusCreated, resp, h.logger)
}

// crisisResources handles GET /api/v1/chat/crisis-resources?country=X.
func (h *chatHandler) crisisResources(w http.ResponseWriter, r *http.Request) {
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		country = defaultCrisisCountry
	}

	res, err := h.crisis.Resources(r.Context(), country)
	if err != nil {
		if errors.Is(err, crisis.ErrUnavailable) {
			writeError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND",
				"could not find crisis resources for "+country, h.logger)
			return
		}
		h.logger.Error("retrieving crisis resources", "country", country, "error", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "error retrieving crisis resources", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "crisis resources retrieved successfully",
		"resources": res,
	}, h.logger)
}
