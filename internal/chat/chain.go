package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/stressease/stressease/internal/log"
)

// basePrompt is the supportive-companion persona every chain starts from.
// Per-user context (profile, recent mood) is appended at build time.
const basePrompt = `You are a warm, supportive mental wellness companion for the StressEase app.
Listen actively, validate feelings, and offer gentle, practical coping suggestions.
Keep replies conversational and short (2-4 sentences). You are not a clinician:
never diagnose, and for any mention of self-harm encourage the user to reach the
crisis resources in the app.`

// Profile is the slice of a user's stored profile the chain context needs.
type Profile struct {
	DisplayName string
	AgeRange    string
	Occupation  string
}

// ProfileSource supplies user profiles for chain construction.
type ProfileSource interface {
	UserProfile(ctx context.Context, userID string) (Profile, error)
}

// MoodSource supplies a short natural-language summary of the user's recent
// mood logs, or an empty string when the user has none.
type MoodSource interface {
	MoodSummary(ctx context.Context, userID string) (string, error)
}

// FactoryConfig contains all required parameters for the chain factory.
type FactoryConfig struct {
	Genkit   *genkit.Genkit // Required
	Profiles ProfileSource  // Required
	Moods    MoodSource     // Required
	Logger   log.Logger

	ModelName   string // Provider-qualified model name (e.g. "googleai/gemini-2.5-flash")
	Temperature float32

	// RateLimiter paces calls to the model provider across all chains.
	// nil uses a default of 10 req/s with a burst of 30.
	RateLimiter *rate.Limiter
	Retry       RetryConfig // Zero value uses DefaultRetryConfig
}

// Factory builds Genkit-backed reply chains bound to a user's long-lived
// context. Building is expensive (two store reads plus an LLM mood summary),
// which is why the manager caches chain handles per session.
type Factory struct {
	g           *genkit.Genkit
	profiles    ProfileSource
	moods       MoodSource
	logger      log.Logger
	modelName   string
	temperature float32
	limiter     *rate.Limiter
	retry       RetryConfig
}

// NewFactory creates a chain factory.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("profile source is required")
	}
	if cfg.Moods == nil {
		return nil, errors.New("mood source is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	return &Factory{
		g:           cfg.Genkit,
		profiles:    cfg.Profiles,
		moods:       cfg.Moods,
		logger:      logger,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		limiter:     limiter,
		retry:       retry,
	}, nil
}

// Build assembles the user's context and returns a chain bound to it. The
// chain itself is stateless: history travels with every Generate call.
func (f *Factory) Build(ctx context.Context, userID string) (Chain, error) {
	profile, err := f.profiles.UserProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	moodSummary, err := f.moods.MoodSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("summarizing mood: %w", err)
	}

	system := buildUserContext(profile, moodSummary)
	f.logger.Debug("built chain", "user_id", userID, "has_mood_summary", moodSummary != "")

	return &genkitChain{factory: f, system: system}, nil
}

// buildUserContext renders the system prompt from the base persona, the
// user's profile, and the mood summary. Missing pieces are simply omitted.
func buildUserContext(profile Profile, moodSummary string) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if profile.DisplayName != "" {
		fmt.Fprintf(&b, "\n\nThe user's name is %s.", profile.DisplayName)
	}
	if profile.AgeRange != "" {
		fmt.Fprintf(&b, " They are in the %s age range.", profile.AgeRange)
	}
	if profile.Occupation != "" {
		fmt.Fprintf(&b, " They work as: %s.", profile.Occupation)
	}
	if moodSummary != "" {
		fmt.Fprintf(&b, "\n\nRecent mood check-ins: %s", moodSummary)
	}
	return b.String()
}

// genkitChain is the production Chain implementation.
type genkitChain struct {
	factory *Factory
	system  string
}

// Generate produces the assistant reply for userText given the session
// history. Each attempt is rate limited; transient provider errors retry
// with exponential backoff.
func (c *genkitChain) Generate(ctx context.Context, userText string, history []*ai.Message) (string, error) {
	// Genkit renders message content in place, so concurrent generations
	// must not share message objects.
	messages := deepCopyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(userText)))

	f := c.factory
	opts := []ai.GenerateOption{
		ai.WithSystem(c.system),
		ai.WithMessages(messages...),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(f.temperature),
		}),
	}
	if f.modelName != "" {
		opts = append(opts, ai.WithModelName(f.modelName))
	}

	var lastErr error
	delay := f.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := genkit.Generate(ctx, f.g, opts...)
		if err == nil {
			text := strings.TrimSpace(resp.Text())
			if text == "" {
				f.logger.Warn("model returned empty response")
				return "I'm sorry, I couldn't come up with a reply just now. Could you say that again?", nil
			}
			return text, nil
		}

		lastErr = err
		if !retryableError(err) {
			return "", fmt.Errorf("generating reply: %w", err)
		}
		if attempt == f.retry.MaxRetries {
			break
		}

		f.logger.Debug("retrying after transient error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, f.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("generating reply after %d retries (elapsed %v): %w",
		f.retry.MaxRetries, time.Since(start), lastErr)
}

// deepCopyMessages copies each message and its content slice so Genkit's
// in-place rendering cannot race with a concurrent generation sharing the
// same history.
func deepCopyMessages(messages []*ai.Message) []*ai.Message {
	copied := make([]*ai.Message, 0, len(messages)+1)
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		clone := *msg
		clone.Content = make([]*ai.Part, len(msg.Content))
		copy(clone.Content, msg.Content)
		copied = append(copied, &clone)
	}
	return copied
}
