package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stressease/stressease/internal/api"
)

const defaultTokenTTL = 24 * time.Hour

// runToken mints a bearer token for local development and testing. The
// production app issues tokens through its own auth flow; this is a
// convenience for curl and load tests.
func runToken(args []string) error {
	tokenFlags := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenFlags.SetOutput(os.Stderr)

	ttl := tokenFlags.Duration("ttl", defaultTokenTTL, "Token lifetime")

	var userID string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		userID = args[0]
		args = args[1:]
	}

	if err := tokenFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing token flags: %w", err)
	}

	if userID == "" {
		return fmt.Errorf("usage: stressease token <user-id> [--ttl 24h]")
	}

	secret := os.Getenv("HMAC_SECRET")
	if len(secret) < 32 {
		return fmt.Errorf("HMAC_SECRET must be set and at least 32 characters")
	}

	fmt.Println(api.IssueToken([]byte(secret), userID, *ttl))
	return nil
}
