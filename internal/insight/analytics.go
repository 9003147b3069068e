// Package insight derives analytics and stress forecasts from daily mood
// logs: summary statistics, trend direction, a rule-based wellbeing
// prediction with a model-written explanation, and a next-day stress
// probability.
package insight

import (
	"sort"
	"strconv"

	"github.com/stressease/stressease/internal/mood"
)

// MissingValue marks an average that could not be computed for lack of data.
const MissingValue = "--"

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDeclining  = "declining"
	TrendStable     = "stable"
)

// Wellbeing states produced by the rule-based prediction.
const (
	StateImprovingWellbeing = "improving_wellbeing"
	StateStableWellbeing    = "stable_wellbeing"
	StateMildConcern        = "mild_concern"
	StateIncreasingStress   = "increasing_stress"
	StateHighStress         = "high_stress"
)

// Data quality labels for the analytics report metadata.
const (
	QualityComplete = "complete"
	QualityPartial  = "partial"
	QualityNoData   = "no_data"
)

// neutralScore is assumed for any 1-5 scale value that is missing.
const neutralScore = 3.0

// Summary holds the headline averages. Averages are formatted to one
// decimal; MissingValue stands in when no scores exist.
type Summary struct {
	AvgMood       string `json:"avg_mood"`
	AvgStress     string `json:"avg_stress"`
	DominantIssue string `json:"dominant_issue"`
}

// Trends reports the direction of each series over the analyzed window.
// Mood increasing means getting happier; stress increasing means getting
// more stressed.
type Trends struct {
	Mood   string `json:"mood"`
	Stress string `json:"stress"`
}

// CalculateSummary computes average mood (core scores), average stress (DASS
// subscale), and the dominant DASS issue across the logs.
func CalculateSummary(logs []mood.DailyLog) Summary {
	var moodScores, depression, anxiety, stress []float64

	for _, dl := range logs {
		if v, ok := dl.CoreScores[mood.ScoreMood]; ok {
			moodScores = append(moodScores, v)
		} else if dl.CoreAvg > 0 {
			moodScores = append(moodScores, dl.CoreAvg)
		}
		if v, ok := dl.DassToday[mood.DassDepression]; ok {
			depression = append(depression, v)
		}
		if v, ok := dl.DassToday[mood.DassAnxiety]; ok {
			anxiety = append(anxiety, v)
		}
		if v, ok := dl.DassToday[mood.DassStressToday]; ok {
			stress = append(stress, v)
		}
	}

	// The dominant issue is the subscale with the highest average; ties go
	// to the earlier subscale in this order.
	dominant := "unknown"
	best := 0.0
	for _, issue := range []struct {
		name   string
		scores []float64
	}{
		{"depression", depression},
		{"anxiety", anxiety},
		{"stress", stress},
	} {
		if avg := mean(issue.scores); avg > best {
			best = avg
			dominant = issue.name
		}
	}

	return Summary{
		AvgMood:       formatAvg(moodScores),
		AvgStress:     formatAvg(stress),
		DominantIssue: dominant,
	}
}

// AnalyzeTrends compares the first half of the window against the second.
// A shift of more than 0.5 points in either direction counts as a trend;
// anything smaller is stable. Fewer than 2 days is always stable.
func AnalyzeTrends(logs []mood.DailyLog) Trends {
	if len(logs) < 2 {
		return Trends{Mood: TrendStable, Stress: TrendStable}
	}

	sorted := make([]mood.DailyLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	mid := len(sorted) / 2
	first, second := sorted[:mid], sorted[mid:]

	moodDiff := halfAvg(second, moodScore) - halfAvg(first, moodScore)
	stressDiff := halfAvg(second, stressScore) - halfAvg(first, stressScore)

	return Trends{
		Mood:   direction(moodDiff),
		Stress: direction(stressDiff),
	}
}

// PredictState applies the deterministic wellbeing rules. Confidence grows
// with the number of days analyzed: 7+ high, 4+ medium, otherwise low.
func PredictState(summary Summary, trends Trends, daysCount int) (state, confidence string) {
	avgMood := parseAvg(summary.AvgMood)
	avgStress := parseAvg(summary.AvgStress)

	switch {
	case trends.Mood == TrendIncreasing && trends.Stress == TrendDeclining:
		state = StateImprovingWellbeing
	case trends.Mood == TrendDeclining && trends.Stress == TrendIncreasing:
		if avgStress >= 4.0 || avgMood <= 2.0 {
			state = StateHighStress
		} else {
			state = StateIncreasingStress
		}
	case trends.Stress == TrendIncreasing:
		if avgStress >= 4.0 {
			state = StateHighStress
		} else {
			state = StateMildConcern
		}
	case trends.Mood == TrendDeclining && avgMood <= 2.5:
		state = StateMildConcern
	case trends.Mood == TrendIncreasing:
		state = StateImprovingWellbeing
	default:
		if avgStress >= 4.0 {
			state = StateMildConcern
		} else {
			state = StateStableWellbeing
		}
	}

	switch {
	case daysCount >= 7:
		confidence = "high"
	case daysCount >= 4:
		confidence = "medium"
	default:
		confidence = "low"
	}
	return state, confidence
}

// explanationTemplates are the fixed fallbacks when the model cannot write
// an explanation.
var explanationTemplates = map[string]string{
	StateImprovingWellbeing: "Your mood has been improving and stress levels are declining. Keep up the positive momentum!",
	StateStableWellbeing:    "Your mental health appears stable. Keep monitoring your wellbeing regularly.",
	StateMildConcern:        "Your stress levels are showing some elevation. Consider using relaxation techniques from the app.",
	StateIncreasingStress:   "Your stress levels are rising. Try the breathing exercises or chat with our support bot for help.",
	StateHighStress:         "Your stress levels are quite elevated. Please consider using the chatbot for support and try calming exercises.",
}

// templateExplanation returns the canned explanation for a state.
func templateExplanation(state string) string {
	if t, ok := explanationTemplates[state]; ok {
		return t
	}
	return "Continue monitoring your mental health regularly with daily check-ins."
}

func moodScore(dl mood.DailyLog) float64 {
	if v, ok := dl.CoreScores[mood.ScoreMood]; ok {
		return v
	}
	return neutralScore
}

func stressScore(dl mood.DailyLog) float64 {
	if v, ok := dl.DassToday[mood.DassStressToday]; ok {
		return v
	}
	return neutralScore
}

func halfAvg(logs []mood.DailyLog, score func(mood.DailyLog) float64) float64 {
	if len(logs) == 0 {
		return neutralScore
	}
	var sum float64
	for _, dl := range logs {
		sum += score(dl)
	}
	return sum / float64(len(logs))
}

func direction(diff float64) string {
	switch {
	case diff > 0.5:
		return TrendIncreasing
	case diff < -0.5:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// formatAvg rounds to one decimal, rendering MissingValue for empty input.
func formatAvg(scores []float64) string {
	if len(scores) == 0 {
		return MissingValue
	}
	return strconv.FormatFloat(mean(scores), 'f', 1, 64)
}

// parseAvg reads a formatted average back, treating MissingValue as neutral.
func parseAvg(s string) float64 {
	if s == MissingValue {
		return neutralScore
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return neutralScore
	}
	return v
}
