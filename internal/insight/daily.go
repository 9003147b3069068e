package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/mood"
)

// Suggestion count bounds for a daily insight.
const (
	minSuggestions = 3
	maxSuggestions = 5
)

// fallbackInsightConfidence is reported when the template stands in for the
// model.
const fallbackInsightConfidence = 60

// ErrNoInsight indicates the user has no generated insight yet.
var ErrNoInsight = errors.New("no insight available")

// DailyInsight is the structured per-day reading of a quiz submission: the
// dominant emotion, a short summary, and concrete suggestions. Only the
// latest one is kept per user.
type DailyInsight struct {
	Date            string    `json:"date"`
	DominantEmotion string    `json:"dominant_emotion"`
	Summary         string    `json:"summary"`
	ConfidenceScore float64   `json:"confidence_score"`
	MotivationQuote string    `json:"motivation_quote"`
	Suggestions     []string  `json:"suggestions"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// InsightStore persists the latest insight per user.
type InsightStore interface {
	SaveLatest(ctx context.Context, userID string, ins DailyInsight) error
	Latest(ctx context.Context, userID string) (DailyInsight, bool, error)
}

// modelInsight is the structured output requested from the model.
type modelInsight struct {
	DominantEmotion string   `json:"dominant_emotion" jsonschema_description:"Dominant emotion for today: Happy, Neutral, Sad, Anxious, Stressed, Energetic, Calm, or Tired"`
	Summary         string   `json:"summary" jsonschema_description:"2-3 sentence summary of today's mood state and key observations"`
	ConfidenceScore float64  `json:"confidence_score" jsonschema_description:"Confidence 0-100 based on score consistency and completeness"`
	MotivationQuote string   `json:"motivation_quote" jsonschema_description:"Short motivational quote with emoji, personalized to today's mood"`
	Suggestions     []string `json:"suggestions" jsonschema_description:"3-5 actionable suggestions for today or tomorrow, specific to detected issues"`
}

// DailyGenerator turns one day's quiz submission into a DailyInsight and
// stores it as the user's latest. The model writes the insight; a
// deterministic template over the same scores stands in when it fails.
type DailyGenerator struct {
	g         *genkit.Genkit
	store     InsightStore
	logger    log.Logger
	modelName string
	now       func() time.Time
}

// NewDailyGenerator creates a DailyGenerator. g may be nil, in which case
// the template insight is always used.
func NewDailyGenerator(g *genkit.Genkit, store InsightStore, modelName string, logger log.Logger) (*DailyGenerator, error) {
	if store == nil {
		return nil, errors.New("insight store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &DailyGenerator{g: g, store: store, logger: logger, modelName: modelName, now: time.Now}, nil
}

// Generate analyzes the day's quiz scores and persists the result as the
// user's latest insight, replacing any previous one. A failed or invalid
// model response degrades to the template insight; only a failed store write
// is an error.
func (d *DailyGenerator) Generate(ctx context.Context, userID string, dl mood.DailyLog) (DailyInsight, error) {
	if dl.Date == "" {
		dl.Date = d.now().UTC().Format(mood.DateFormat)
	}

	mi, ok := d.analyzeWithModel(ctx, dl)
	if !ok {
		mi = templateInsight(dl)
	}

	ins := DailyInsight{
		Date:            dl.Date,
		DominantEmotion: mi.DominantEmotion,
		Summary:         mi.Summary,
		ConfidenceScore: mi.ConfidenceScore,
		MotivationQuote: mi.MotivationQuote,
		Suggestions:     mi.Suggestions,
		GeneratedAt:     d.now().UTC(),
	}

	if err := d.store.SaveLatest(ctx, userID, ins); err != nil {
		return DailyInsight{}, fmt.Errorf("saving daily insight: %w", err)
	}
	return ins, nil
}

// Latest returns the user's most recent insight. Returns ErrNoInsight when
// none has been generated yet.
func (d *DailyGenerator) Latest(ctx context.Context, userID string) (DailyInsight, error) {
	ins, ok, err := d.store.Latest(ctx, userID)
	if err != nil {
		return DailyInsight{}, fmt.Errorf("loading daily insight: %w", err)
	}
	if !ok {
		return DailyInsight{}, ErrNoInsight
	}
	return ins, nil
}

func (d *DailyGenerator) analyzeWithModel(ctx context.Context, dl mood.DailyLog) (modelInsight, bool) {
	if d.g == nil {
		return modelInsight{}, false
	}

	prompt := fmt.Sprintf(`Based on today's mood quiz scores, provide personalized insights and suggestions.

Today's Mood Data:
%s

Score interpretation: 1 very poor, 2 poor, 3 moderate, 4 good, 5 excellent.

Instructions:
1. Dominant emotion: choose the most fitting of Happy, Neutral, Sad, Anxious, Stressed, Energetic, Calm, Tired.
2. Summary: 2-3 sentences about today's mood state, highlighting key observations.
3. Confidence score: 0-100, high when scores align, lower when they conflict.
4. Motivation quote: short and encouraging, with an emoji, resonating with today's mood.
5. Suggestions: 3-5 specific, actionable suggestions for today or tomorrow addressing detected issues.

Tone: empathetic, supportive, non-clinical. No medical terminology or diagnosis.`,
		quizDataText(dl))

	resp, err := genkit.Generate(ctx, d.g,
		ai.WithSystem("You are a compassionate mental wellness assistant analyzing daily mood quiz data."),
		ai.WithPrompt("%s", prompt),
		ai.WithModelName(d.modelName),
		ai.WithOutputType(modelInsight{}),
	)
	if err != nil {
		d.logger.Warn("daily insight generation failed, using template", "error", err)
		return modelInsight{}, false
	}

	var mi modelInsight
	if err := resp.Output(&mi); err != nil {
		d.logger.Warn("unparseable daily insight output, using template", "error", err)
		return modelInsight{}, false
	}
	if err := validateInsight(mi); err != nil {
		d.logger.Warn("invalid daily insight output, using template", "error", err)
		return modelInsight{}, false
	}
	return mi, true
}

// quizDataText renders the quiz submission as readable prompt input.
func quizDataText(dl mood.DailyLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", dl.Date)

	if len(dl.CoreScores) > 0 {
		b.WriteString("Core metrics:\n")
		for _, key := range []string{mood.ScoreMood, mood.ScoreEnergy, mood.ScoreSleep, mood.ScoreStress} {
			if v, ok := dl.CoreScores[key]; ok {
				fmt.Fprintf(&b, "  - %s: %.0f/5\n", key, v)
			}
		}
	}
	if len(dl.DassToday) > 0 {
		b.WriteString("Mental health indicators:\n")
		for _, key := range []string{mood.DassDepression, mood.DassAnxiety, mood.DassStressToday} {
			if v, ok := dl.DassToday[key]; ok {
				fmt.Fprintf(&b, "  - %s: %.0f/5\n", key, v)
			}
		}
	}
	if dl.CoreAvg > 0 {
		fmt.Fprintf(&b, "Overall core average: %.2f/5\n", dl.CoreAvg)
	}
	if dl.DailyTotal > 0 {
		fmt.Fprintf(&b, "Daily quiz total: %.0f/60\n", dl.DailyTotal)
	}
	return strings.TrimSpace(b.String())
}

// validateInsight rejects structurally unusable model output so a garbled
// response falls back to the template rather than reaching users.
func validateInsight(mi modelInsight) error {
	if strings.TrimSpace(mi.DominantEmotion) == "" {
		return errors.New("empty dominant emotion")
	}
	if strings.TrimSpace(mi.Summary) == "" {
		return errors.New("empty summary")
	}
	if strings.TrimSpace(mi.MotivationQuote) == "" {
		return errors.New("empty motivation quote")
	}
	if mi.ConfidenceScore < 0 || mi.ConfidenceScore > 100 {
		return fmt.Errorf("confidence score %.1f out of range", mi.ConfidenceScore)
	}
	if n := len(mi.Suggestions); n < minSuggestions || n > maxSuggestions {
		return fmt.Errorf("got %d suggestions, want %d-%d", n, minSuggestions, maxSuggestions)
	}
	for _, s := range mi.Suggestions {
		if strings.TrimSpace(s) == "" {
			return errors.New("blank suggestion")
		}
	}
	return nil
}

// templateInsight is the deterministic reading of the same scores.
func templateInsight(dl mood.DailyLog) modelInsight {
	emotion := dominantEmotion(dl)

	summary := fmt.Sprintf("Today's check-in points to feeling %s.", strings.ToLower(emotion))
	if dl.CoreAvg > 0 {
		summary = fmt.Sprintf("Today's check-in points to feeling %s, with an overall core average of %.1f/5.",
			strings.ToLower(emotion), dl.CoreAvg)
	}

	return modelInsight{
		DominantEmotion: emotion,
		Summary:         summary,
		ConfidenceScore: fallbackInsightConfidence,
		MotivationQuote: templateQuote(emotion),
		Suggestions:     templateSuggestions(dl),
	}
}

// dominantEmotion derives the label from the scores; distress signals take
// priority over positive ones.
func dominantEmotion(dl mood.DailyLog) string {
	moodV := dl.CoreScores[mood.ScoreMood]
	energy := dl.CoreScores[mood.ScoreEnergy]
	sleep := dl.CoreScores[mood.ScoreSleep]

	switch {
	case dl.DassToday[mood.DassStressToday] >= 4 || dl.CoreScores[mood.ScoreStress] >= 4:
		return "Stressed"
	case dl.DassToday[mood.DassAnxiety] >= 4:
		return "Anxious"
	case dl.DassToday[mood.DassDepression] >= 4 || (moodV > 0 && moodV <= 2):
		return "Sad"
	case (energy > 0 && energy <= 2) || (sleep > 0 && sleep <= 2):
		return "Tired"
	case moodV >= 4 && energy >= 4:
		return "Energetic"
	case moodV >= 4:
		return "Happy"
	default:
		return "Neutral"
	}
}

func templateQuote(emotion string) string {
	quotes := map[string]string{
		"Stressed":  "Breathe in calm, breathe out tension. 🌬️",
		"Anxious":   "One small step at a time is still forward. 🌱",
		"Sad":       "Even the darkest night ends with sunrise. 🌅",
		"Tired":     "Rest is productive too. 😴",
		"Energetic": "Ride that wave of energy today! ⚡",
		"Happy":     "Keep shining, today is yours. ☀️",
	}
	if q, ok := quotes[emotion]; ok {
		return q
	}
	return "Every day you check in is a step toward knowing yourself better. 🧭"
}

// templateSuggestions picks suggestions for the weakest metrics, padding
// with general ones up to the minimum.
func templateSuggestions(dl mood.DailyLog) []string {
	var out []string
	if v, ok := dl.DassToday[mood.DassStressToday]; ok && v >= 4 {
		out = append(out, "Try a 5-minute breathing exercise when stress peaks.")
	}
	if v, ok := dl.CoreScores[mood.ScoreSleep]; ok && v <= 2 {
		out = append(out, "Wind down without screens for 30 minutes before bed tonight.")
	}
	if v, ok := dl.CoreScores[mood.ScoreEnergy]; ok && v <= 2 {
		out = append(out, "Take a short walk outside to recharge your energy.")
	}
	if v, ok := dl.CoreScores[mood.ScoreMood]; ok && v <= 2 {
		out = append(out, "Reach out to someone you trust, or talk it through in the chat.")
	}

	general := []string{
		"Jot down one thing that went well today.",
		"Complete tomorrow's quiz to keep building your picture.",
		"Take a moment of quiet before the day winds up.",
	}
	for _, s := range general {
		if len(out) >= minSuggestions {
			break
		}
		out = append(out, s)
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
