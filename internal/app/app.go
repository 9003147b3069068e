// Package app wires the application together: configuration, tracing, the
// database pool, the Genkit runtime, and every domain service the HTTP API
// serves. Setup builds an App; Close releases everything in reverse order.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/firebase/genkit/go/genkit"
	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stressease/stressease/internal/chat"
	"github.com/stressease/stressease/internal/config"
	"github.com/stressease/stressease/internal/crisis"
	"github.com/stressease/stressease/internal/insight"
	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/mood"
)

// App is the application container. Fields are exported so cmd can hand them
// to the HTTP server.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool

	Sessions      *chat.Manager
	Moods         *mood.Store
	Insights      *insight.Service
	DailyInsights *insight.DailyGenerator
	Crisis        *crisis.Service

	otelCleanup func()
	dbCleanup   func()
	lock        *flock.Flock
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App (Setup calls it on its own error path).
func (a *App) Close() error {
	logger := a.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	logger.Info("shutting down application")

	// The manager drains its write-behind queue before the pool closes, so
	// queued turns still reach the database.
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
		logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	var errs []error
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("releasing instance lock: %w", err))
		}
	}
	return errors.Join(errs...)
}

// AcquireInstanceLock takes an exclusive file lock under the config
// directory so two serve processes cannot share one write-behind queue.
// The lock is released by Close.
func (a *App) AcquireInstanceLock() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting user home directory: %w", err)
	}

	lockDir := filepath.Join(home, ".stressease")
	if err := os.MkdirAll(lockDir, 0o750); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	lockPath := filepath.Join(lockDir, "serve.lock")
	lock := flock.New(lockPath)

	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring instance lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", lockPath)
	}

	a.lock = lock
	return nil
}
