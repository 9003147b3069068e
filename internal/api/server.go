// Package api is the JSON HTTP surface of the stressease backend: chat,
// mood check-ins, analytics, stress prediction, and crisis resources,
// behind HMAC bearer-token auth.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stressease/stressease/internal/chat"
	"github.com/stressease/stressease/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Sessions      chatService         // Required
	Crisis        crisisService       // Required
	Moods         moodStore           // Required
	Insights      insightService      // Required
	DailyInsights dailyInsightService // Required
	Pool          *pgxpool.Pool       // Optional: nil disables pool stats in /ready

	HMACSecret  []byte   // Required: 32+ bytes
	CORSOrigins []string // Allowed origins for CORS

	// MaxMessageLength caps chat messages; 0 uses the chat default.
	MaxMessageLength int
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.Crisis == nil {
		return nil, errors.New("crisis service is required")
	}
	if cfg.Moods == nil {
		return nil, errors.New("mood store is required")
	}
	if cfg.Insights == nil {
		return nil, errors.New("insight service is required")
	}
	if cfg.DailyInsights == nil {
		return nil, errors.New("daily insight service is required")
	}
	if len(cfg.HMACSecret) < 32 {
		return nil, errors.New("hmac secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	maxMessageLen := cfg.MaxMessageLength
	if maxMessageLen <= 0 {
		maxMessageLen = chat.DefaultMaxMessageLength
	}

	ch := &chatHandler{
		sessions:      cfg.Sessions,
		crisis:        cfg.Crisis,
		maxMessageLen: maxMessageLen,
		logger:        logger,
	}
	mh := &moodHandler{store: cfg.Moods, insights: cfg.DailyInsights, logger: logger}
	ih := &insightHandler{svc: cfg.Insights, daily: cfg.DailyInsights, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/message", ch.sendMessage)
	mux.HandleFunc("GET /api/v1/chat/crisis-resources", ch.crisisResources)
	mux.HandleFunc("POST /api/v1/mood/daily", mh.saveDaily)
	mux.HandleFunc("GET /api/v1/mood/history", mh.history)
	mux.HandleFunc("GET /api/v1/analytics/summary", ih.summary)
	mux.HandleFunc("GET /api/v1/analytics/insights", ih.latestInsight)
	mux.HandleFunc("GET /api/v1/predict/stress", ih.predictStress)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Auth → Routes
	// RequestID runs before Logging so request_id is available in log
	// attributes; CORS runs before Auth so preflight OPTIONS succeeds
	// without a token.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.HMACSecret, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
