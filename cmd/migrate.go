package cmd

import (
	"fmt"

	"github.com/stressease/stressease/db"
	"github.com/stressease/stressease/internal/config"
	"github.com/stressease/stressease/internal/log"
)

// runMigrate applies pending database migrations and exits. Split from serve
// so deploy pipelines can migrate without an HMAC secret or API keys.
func runMigrate(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
