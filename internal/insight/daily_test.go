package insight

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stressease/stressease/internal/mood"
)

type stubInsightStore struct {
	saved   []DailyInsight
	saveErr error

	latest    DailyInsight
	latestOK  bool
	latestErr error
}

func (s *stubInsightStore) SaveLatest(_ context.Context, _ string, ins DailyInsight) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, ins)
	return nil
}

func (s *stubInsightStore) Latest(context.Context, string) (DailyInsight, bool, error) {
	return s.latest, s.latestOK, s.latestErr
}

func quizLog(date string, moodV, energy, sleep, stress float64) mood.DailyLog {
	return mood.DailyLog{
		Date: date,
		CoreScores: map[string]float64{
			mood.ScoreMood:   moodV,
			mood.ScoreEnergy: energy,
			mood.ScoreSleep:  sleep,
			mood.ScoreStress: stress,
		},
		DassToday: map[string]float64{
			mood.DassDepression:  2,
			mood.DassAnxiety:     2,
			mood.DassStressToday: stress,
		},
		CoreAvg:    (moodV + energy + sleep + stress) / 4,
		DailyTotal: 40,
	}
}

func TestNewDailyGeneratorRequiresStore(t *testing.T) {
	if _, err := NewDailyGenerator(nil, nil, "", nil); err == nil {
		t.Error("NewDailyGenerator(nil store) = nil, want error")
	}
}

func TestGeneratePersistsTemplateInsight(t *testing.T) {
	st := &stubInsightStore{}
	gen, err := NewDailyGenerator(nil, st, "", nil)
	if err != nil {
		t.Fatalf("NewDailyGenerator() error = %v", err)
	}
	gen.now = func() time.Time { return time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC) }

	ins, err := gen.Generate(context.Background(), "u1", quizLog("2026-03-03", 4, 4, 3, 2))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if ins.Date != "2026-03-03" {
		t.Errorf("Date = %q, want 2026-03-03", ins.Date)
	}
	if ins.DominantEmotion == "" || ins.Summary == "" || ins.MotivationQuote == "" {
		t.Errorf("template insight has blank fields: %+v", ins)
	}
	if n := len(ins.Suggestions); n < minSuggestions || n > maxSuggestions {
		t.Errorf("len(Suggestions) = %d, want %d-%d", n, minSuggestions, maxSuggestions)
	}
	if ins.ConfidenceScore != fallbackInsightConfidence {
		t.Errorf("ConfidenceScore = %.0f, want %d", ins.ConfidenceScore, fallbackInsightConfidence)
	}
	if !ins.GeneratedAt.Equal(time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("GeneratedAt = %v", ins.GeneratedAt)
	}
	if len(st.saved) != 1 {
		t.Fatalf("store holds %d insights, want 1", len(st.saved))
	}
	if st.saved[0].Date != ins.Date {
		t.Errorf("persisted Date = %q, want %q", st.saved[0].Date, ins.Date)
	}
}

func TestGenerateDefaultsEmptyDate(t *testing.T) {
	st := &stubInsightStore{}
	gen, _ := NewDailyGenerator(nil, st, "", nil)
	gen.now = func() time.Time { return time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC) }

	dl := quizLog("", 3, 3, 3, 3)
	ins, err := gen.Generate(context.Background(), "u1", dl)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if ins.Date != "2026-03-03" {
		t.Errorf("Date = %q, want today's date 2026-03-03", ins.Date)
	}
}

func TestGenerateStoreFailure(t *testing.T) {
	st := &stubInsightStore{saveErr: errors.New("db down")}
	gen, _ := NewDailyGenerator(nil, st, "", nil)

	if _, err := gen.Generate(context.Background(), "u1", quizLog("2026-03-03", 3, 3, 3, 3)); err == nil {
		t.Error("Generate() should propagate store write errors")
	}
}

func TestLatest(t *testing.T) {
	want := DailyInsight{Date: "2026-03-03", DominantEmotion: "Calm"}

	t.Run("found", func(t *testing.T) {
		gen, _ := NewDailyGenerator(nil, &stubInsightStore{latest: want, latestOK: true}, "", nil)
		got, err := gen.Latest(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if got.DominantEmotion != want.DominantEmotion {
			t.Errorf("DominantEmotion = %q, want %q", got.DominantEmotion, want.DominantEmotion)
		}
	})

	t.Run("missing", func(t *testing.T) {
		gen, _ := NewDailyGenerator(nil, &stubInsightStore{}, "", nil)
		if _, err := gen.Latest(context.Background(), "u1"); !errors.Is(err, ErrNoInsight) {
			t.Errorf("Latest() error = %v, want ErrNoInsight", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		gen, _ := NewDailyGenerator(nil, &stubInsightStore{latestErr: errors.New("db down")}, "", nil)
		if _, err := gen.Latest(context.Background(), "u1"); err == nil || errors.Is(err, ErrNoInsight) {
			t.Errorf("Latest() error = %v, want wrapped store error", err)
		}
	})
}

func TestDominantEmotion(t *testing.T) {
	tests := []struct {
		name string
		dl   mood.DailyLog
		want string
	}{
		{name: "high stress wins", dl: quizLog("d", 4, 4, 4, 5), want: "Stressed"},
		{name: "high anxiety", dl: mood.DailyLog{
			CoreScores: map[string]float64{mood.ScoreMood: 3},
			DassToday:  map[string]float64{mood.DassAnxiety: 4},
		}, want: "Anxious"},
		{name: "high depression", dl: mood.DailyLog{
			CoreScores: map[string]float64{mood.ScoreMood: 3},
			DassToday:  map[string]float64{mood.DassDepression: 5},
		}, want: "Sad"},
		{name: "low mood", dl: quizLog("d", 2, 3, 3, 2), want: "Sad"},
		{name: "low energy", dl: quizLog("d", 3, 2, 3, 2), want: "Tired"},
		{name: "poor sleep", dl: quizLog("d", 3, 3, 1, 2), want: "Tired"},
		{name: "good mood and energy", dl: quizLog("d", 5, 4, 4, 2), want: "Energetic"},
		{name: "good mood alone", dl: quizLog("d", 4, 3, 3, 2), want: "Happy"},
		{name: "middle of the road", dl: quizLog("d", 3, 3, 3, 3), want: "Neutral"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dominantEmotion(tt.dl); got != tt.want {
				t.Errorf("dominantEmotion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateInsight(t *testing.T) {
	valid := modelInsight{
		DominantEmotion: "Calm",
		Summary:         "A steady, balanced day overall.",
		ConfidenceScore: 82,
		MotivationQuote: "Steady as you go. 🚶",
		Suggestions:     []string{"a", "b", "c"},
	}
	mutate := func(f func(*modelInsight)) modelInsight {
		mi := valid
		mi.Suggestions = append([]string(nil), valid.Suggestions...)
		f(&mi)
		return mi
	}

	tests := []struct {
		name    string
		mi      modelInsight
		wantErr bool
	}{
		{name: "valid", mi: valid},
		{name: "five suggestions", mi: mutate(func(m *modelInsight) { m.Suggestions = []string{"a", "b", "c", "d", "e"} })},
		{name: "blank emotion", mi: mutate(func(m *modelInsight) { m.DominantEmotion = " " }), wantErr: true},
		{name: "blank summary", mi: mutate(func(m *modelInsight) { m.Summary = "" }), wantErr: true},
		{name: "blank quote", mi: mutate(func(m *modelInsight) { m.MotivationQuote = "" }), wantErr: true},
		{name: "confidence too high", mi: mutate(func(m *modelInsight) { m.ConfidenceScore = 101 }), wantErr: true},
		{name: "confidence negative", mi: mutate(func(m *modelInsight) { m.ConfidenceScore = -1 }), wantErr: true},
		{name: "too few suggestions", mi: mutate(func(m *modelInsight) { m.Suggestions = []string{"a", "b"} }), wantErr: true},
		{name: "too many suggestions", mi: mutate(func(m *modelInsight) { m.Suggestions = []string{"a", "b", "c", "d", "e", "f"} }), wantErr: true},
		{name: "blank suggestion", mi: mutate(func(m *modelInsight) { m.Suggestions[1] = "  " }), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInsight(tt.mi)
			if tt.wantErr && err == nil {
				t.Error("validateInsight() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateInsight() = %v, want nil", err)
			}
		})
	}
}

func TestTemplateSuggestionsTargetWeakMetrics(t *testing.T) {
	dl := mood.DailyLog{
		CoreScores: map[string]float64{
			mood.ScoreMood:   1,
			mood.ScoreEnergy: 1,
			mood.ScoreSleep:  1,
		},
		DassToday: map[string]float64{mood.DassStressToday: 5},
	}

	got := templateSuggestions(dl)
	if n := len(got); n < minSuggestions || n > maxSuggestions {
		t.Fatalf("len = %d, want %d-%d", n, minSuggestions, maxSuggestions)
	}
	joined := strings.Join(got, " ")
	for _, want := range []string{"breathing", "bed", "walk", "chat"} {
		if !strings.Contains(joined, want) {
			t.Errorf("suggestions missing %q:\n%v", want, got)
		}
	}
}

func TestQuizDataText(t *testing.T) {
	text := quizDataText(quizLog("2026-03-03", 4, 3, 2, 2))
	for _, want := range []string{"Date: 2026-03-03", "mood: 4/5", "sleep: 2/5", "stress: 2/5", "Daily quiz total: 40/60"} {
		if !strings.Contains(text, want) {
			t.Errorf("quiz text missing %q:\n%s", want, text)
		}
	}
}