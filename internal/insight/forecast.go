package insight

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/stressease/stressease/internal/mood"
)

// Stress probability label thresholds.
const (
	labelHighThreshold   = 0.7
	labelMediumThreshold = 0.4
)

// fallbackConfidence is reported when the deterministic formula stands in
// for the model.
const fallbackConfidence = 0.65

// BasedOn echoes the inputs a forecast was computed from.
type BasedOn struct {
	AvgMoodScore float64 `json:"avgMoodScore"`
	ChatCount    int     `json:"chatCount"`
	AvgQuizScore float64 `json:"avgQuizScore"`
}

// Forecast is the next-day stress prediction.
type Forecast struct {
	Date              string  `json:"date"`
	StressProbability float64 `json:"stressProbability"`
	Label             string  `json:"label"`
	Confidence        float64 `json:"confidence"`
	BasedOn           BasedOn `json:"basedOn"`
}

// modelForecast is the structured output requested from the model.
type modelForecast struct {
	StressProbability float64 `json:"stress_probability" jsonschema_description:"Probability of high stress tomorrow, 0.0 to 1.0"`
	Label             string  `json:"label" jsonschema_description:"High (>=0.7), Medium (0.4-0.69), or Low (<0.4)"`
	Confidence        float64 `json:"confidence" jsonschema_description:"Model confidence in this prediction, 0.0 to 1.0"`
}

// AvgQuizScore computes the 7-day average of daily quiz totals. Returns the
// average and the number of days that had a total; zero days means the user
// has no usable quiz data.
func (s *Service) AvgQuizScore(ctx context.Context, userID string) (float64, int, error) {
	logs, err := s.logs.LastLogs(ctx, userID, reportDays)
	if err != nil {
		return 0, 0, fmt.Errorf("loading mood logs: %w", err)
	}

	var sum float64
	var days int
	for _, dl := range logs {
		if dl.DailyTotal > 0 {
			sum += dl.DailyTotal
			days++
		}
	}
	if days == 0 {
		return 0, 0, nil
	}
	return math.Round(sum/float64(days)*100) / 100, days, nil
}

// PredictStress forecasts tomorrow's stress from the 7-day metrics. The
// model estimates the probability; when it fails, a weighted formula over
// the same inputs is used with reduced confidence.
func (s *Service) PredictStress(ctx context.Context, avgMood float64, chatCount int, avgQuiz float64) Forecast {
	tomorrow := time.Now().AddDate(0, 0, 1).Format(mood.DateFormat)
	basedOn := BasedOn{AvgMoodScore: avgMood, ChatCount: chatCount, AvgQuizScore: avgQuiz}

	if mf, ok := s.predictWithModel(ctx, avgMood, chatCount, avgQuiz); ok {
		return Forecast{
			Date:              tomorrow,
			StressProbability: mf.StressProbability,
			Label:             probabilityLabel(mf.StressProbability),
			Confidence:        mf.Confidence,
			BasedOn:           basedOn,
		}
	}

	probability := fallbackProbability(avgMood, chatCount, avgQuiz)
	return Forecast{
		Date:              tomorrow,
		StressProbability: probability,
		Label:             probabilityLabel(probability),
		Confidence:        fallbackConfidence,
		BasedOn:           basedOn,
	}
}

func (s *Service) predictWithModel(ctx context.Context, avgMood float64, chatCount int, avgQuiz float64) (modelForecast, bool) {
	if s.g == nil {
		return modelForecast{}, false
	}

	prompt := fmt.Sprintf(`Predict the probability that this user experiences high stress tomorrow.

7-day metrics:
- Average quiz total: %.1f/60 (12 daily questions on a 1-5 scale; lower totals mean worse wellness)
- Average mood: %.1f/5 (1 very poor, 5 excellent)
- Chat sessions: %d (support-seeking behavior; many sessions suggest active struggling, zero can mean doing well or avoiding help)

Weigh the metrics holistically: low quiz totals with few chats suggest isolation and very high risk;
high totals with active chatting suggest proactive management and lower risk.
Confidence should be high (0.8-1.0) when the metrics align, lower on mixed signals.`,
		avgQuiz, avgMood, chatCount)

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithSystem("You analyze mental health metrics and respond with structured predictions."),
		ai.WithPrompt("%s", prompt),
		ai.WithModelName(s.modelName),
		ai.WithOutputType(modelForecast{}),
	)
	if err != nil {
		s.logger.Warn("stress forecast generation failed, using formula", "error", err)
		return modelForecast{}, false
	}

	var mf modelForecast
	if err := resp.Output(&mf); err != nil {
		s.logger.Warn("unparseable stress forecast output, using formula", "error", err)
		return modelForecast{}, false
	}

	mf.StressProbability = clamp01(mf.StressProbability)
	mf.Confidence = clamp01(mf.Confidence)
	return mf, true
}

// fallbackProbability is the deterministic estimate: low mood, frequent
// chatting, and low quiz totals all push stress up. Mood and quiz dominate.
func fallbackProbability(avgMood float64, chatCount int, avgQuiz float64) float64 {
	moodFactor := (5.0 - avgMood) / 4.0
	chatFactor := math.Min(float64(chatCount)/15.0, 1.0)
	quizFactor := (60.0 - avgQuiz) / 48.0

	p := moodFactor*0.4 + chatFactor*0.2 + quizFactor*0.4
	return math.Round(clamp01(p)*100) / 100
}

func probabilityLabel(p float64) string {
	switch {
	case p >= labelHighThreshold:
		return "High"
	case p >= labelMediumThreshold:
		return "Medium"
	default:
		return "Low"
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
