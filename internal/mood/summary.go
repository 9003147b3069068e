package mood

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/stressease/stressease/internal/log"
)

// summaryDays is how many recent logs feed the summary.
const summaryDays = 7

// LogSource supplies recent daily logs for summarization.
type LogSource interface {
	LastLogs(ctx context.Context, userID string, limit int) ([]DailyLog, error)
}

// Summarizer condenses a user's recent mood logs into one or two sentences
// of chain context. The model writes the summary; when it fails, a
// deterministic rendering of the same numbers is used instead.
type Summarizer struct {
	g         *genkit.Genkit
	logs      LogSource
	logger    log.Logger
	modelName string
}

// NewSummarizer creates a Summarizer. g may be nil, in which case the
// deterministic rendering is always used.
func NewSummarizer(g *genkit.Genkit, logs LogSource, modelName string, logger log.Logger) (*Summarizer, error) {
	if logs == nil {
		return nil, errors.New("log source is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Summarizer{g: g, logs: logs, logger: logger, modelName: modelName}, nil
}

// MoodSummary returns a short natural-language summary of the user's recent
// check-ins, or an empty string when the user has none. A failed model call
// degrades to the deterministic summary, never to an error: mood context is
// an enrichment, not a dependency.
func (s *Summarizer) MoodSummary(ctx context.Context, userID string) (string, error) {
	logs, err := s.logs.LastLogs(ctx, userID, summaryDays)
	if err != nil {
		return "", fmt.Errorf("loading mood logs: %w", err)
	}
	if len(logs) == 0 {
		return "", nil
	}

	stats := statsLine(logs)
	if s.g == nil {
		return stats, nil
	}

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithSystem("You summarize mood check-in statistics for a wellness chatbot's context. "+
			"Respond with one or two plain sentences, no advice, no formatting."),
		ai.WithPrompt("Summarize these recent daily check-ins: %s", stats),
		ai.WithModelName(s.modelName),
	)
	if err != nil {
		s.logger.Warn("mood summary generation failed, using stats line", "error", err)
		return stats, nil
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return stats, nil
	}
	return text, nil
}

// statsLine renders the logs as a compact factual sentence.
func statsLine(logs []DailyLog) string {
	var moodSum, stressSum float64
	var moodN, stressN int
	for _, dl := range logs {
		if v, ok := dl.CoreScores[ScoreMood]; ok {
			moodSum += v
			moodN++
		}
		if v, ok := dl.DassToday[DassStressToday]; ok {
			stressSum += v
			stressN++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Over the last %d day(s)", len(logs))
	if moodN > 0 {
		fmt.Fprintf(&b, ", average mood %.1f/5", moodSum/float64(moodN))
	}
	if stressN > 0 {
		fmt.Fprintf(&b, ", average stress %.1f/5", stressSum/float64(stressN))
	}
	b.WriteString(".")
	return b.String()
}
