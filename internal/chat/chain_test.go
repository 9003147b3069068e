package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestBuildUserContext(t *testing.T) {
	tests := []struct {
		name        string
		profile     Profile
		moodSummary string
		want        []string
		notWant     []string
	}{
		{
			name:    "empty profile no mood",
			profile: Profile{},
			want:    []string{"mental wellness companion"},
			notWant: []string{"The user's name is", "Recent mood check-ins"},
		},
		{
			name: "full profile",
			profile: Profile{
				DisplayName: "Mira",
				AgeRange:    "25-34",
				Occupation:  "nurse",
			},
			moodSummary: "Mood has been low for three days.",
			want: []string{
				"The user's name is Mira.",
				"25-34 age range",
				"They work as: nurse.",
				"Recent mood check-ins: Mood has been low for three days.",
			},
		},
		{
			name:        "mood only",
			profile:     Profile{},
			moodSummary: "Steady this week.",
			want:        []string{"Recent mood check-ins: Steady this week."},
			notWant:     []string{"The user's name is"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildUserContext(tt.profile, tt.moodSummary)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("buildUserContext() missing %q\ngot: %s", w, got)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(got, nw) {
					t.Errorf("buildUserContext() should not contain %q", nw)
				}
			}
		})
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("googleai: RATE LIMIT exceeded"), true},
		{"http 429", errors.New("request failed with status 429"), true},
		{"server 503", errors.New("503 service unavailable"), true},
		{"timeout", errors.New("dial tcp: i/o timeout"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"invalid key", errors.New("API key not valid"), false},
		{"safety block", errors.New("response blocked by safety settings"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDeepCopyMessages(t *testing.T) {
	original := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hello")),
		nil,
		ai.NewModelMessage(ai.NewTextPart("hi there")),
	}

	copied := deepCopyMessages(original)

	if len(copied) != 2 {
		t.Fatalf("len(copied) = %d, want 2 (nil dropped)", len(copied))
	}
	for i, msg := range copied {
		if msg == original[0] || msg == original[2] {
			t.Errorf("copied[%d] shares a message pointer with the original", i)
		}
	}

	// Mutating a copy's content slice must not touch the original.
	copied[0].Content[0] = ai.NewTextPart("mutated")
	if got := messageText(original[0]); got != "hello" {
		t.Errorf("original mutated through copy: %q", got)
	}
}

func TestNewFactoryValidation(t *testing.T) {
	if _, err := NewFactory(FactoryConfig{}); err == nil {
		t.Error("NewFactory() with zero config should fail")
	}
}
