package personality

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/socialx/agent/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnalyzeTraitsEmptyInput(t *testing.T) {
	a := NewAnalyzer(testLogger())

	scores := a.AnalyzeTraits(nil)
	if scores.Openness != 0.5 || scores.Conscientiousness != 0.5 ||
		scores.Extraversion != 0.5 || scores.Agreeableness != 0.5 {
		t.Errorf("expected neutral defaults, got %+v", scores)
	}
	if scores.Neuroticism != 0.3 {
		t.Errorf("expected default neuroticism 0.3, got %f", scores.Neuroticism)
	}
}

func TestAnalyzeTraitsWordSignals(t *testing.T) {
	a := NewAnalyzer(testLogger())

	creative := a.AnalyzeTraits([]string{
		"working on a creative new idea today",
		"love to explore innovative art projects",
		"so curious about this imaginative approach",
	})
	plain := a.AnalyzeTraits([]string{
		"lunch was fine",
		"watched tv",
		"going home",
	})

	if creative.Openness <= plain.Openness {
		t.Errorf("expected creative texts to score higher openness: %f vs %f",
			creative.Openness, plain.Openness)
	}
}

func TestAnalyzeTraitsScoresInRange(t *testing.T) {
	a := NewAnalyzer(testLogger())

	scores := a.AnalyzeTraits([]string{
		"love love love amazing great happy awesome best wonderful",
		"kind helpful caring support trust empathy",
	})

	for name, v := range map[string]float64{
		"openness":          scores.Openness,
		"conscientiousness": scores.Conscientiousness,
		"extraversion":      scores.Extraversion,
		"agreeableness":     scores.Agreeableness,
		"neuroticism":       scores.Neuroticism,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s score out of range: %f", name, v)
		}
	}
}

func TestDescribe(t *testing.T) {
	a := NewAnalyzer(testLogger())

	cases := []struct {
		name   string
		scores models.TraitScores
		want   string
	}{
		{
			name: "all neutral",
			scores: models.TraitScores{
				Openness: 0.5, Conscientiousness: 0.5, Extraversion: 0.5,
				Agreeableness: 0.5, Neuroticism: 0.5,
			},
			want: "balanced and adaptable",
		},
		{
			name: "open and stable",
			scores: models.TraitScores{
				Openness: 0.8, Conscientiousness: 0.5, Extraversion: 0.5,
				Agreeableness: 0.5, Neuroticism: 0.2,
			},
			want: "creative and open to new experiences, emotionally stable",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := a.Describe(tc.scores)
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractWritingStyle(t *testing.T) {
	a := NewAnalyzer(testLogger())

	style := a.ExtractWritingStyle([]string{
		"What do you all think about this?",
		"So excited about the launch!!! Can't wait!",
		"Quick update, things are going well.",
	})

	if !style.AsksQuestions {
		t.Error("expected questions to be detected")
	}
	if !style.Enthusiastic {
		t.Error("expected exclamation-heavy posts to read as enthusiastic")
	}
	if style.UsesEmojis {
		t.Error("expected no emoji usage detected")
	}
	if style.AvgPostLength <= 0 {
		t.Errorf("expected positive average length, got %f", style.AvgPostLength)
	}
}

func TestExtractWritingStyleEmojis(t *testing.T) {
	a := NewAnalyzer(testLogger())

	style := a.ExtractWritingStyle([]string{
		"shipping today 🚀🚀",
		"great session 🔥",
	})
	if !style.UsesEmojis {
		t.Error("expected emoji usage detected")
	}
}

func TestSentiment(t *testing.T) {
	pos := sentiment(tokenize("this is great and i love it"))
	if pos <= 0 {
		t.Errorf("expected positive sentiment, got %f", pos)
	}

	neg := sentiment(tokenize("terrible awful day i hate this"))
	if neg >= 0 {
		t.Errorf("expected negative sentiment, got %f", neg)
	}

	neutral := sentiment(tokenize("the meeting is at noon"))
	if neutral != 0 {
		t.Errorf("expected zero sentiment for neutral text, got %f", neutral)
	}
}

func TestTokenize(t *testing.T) {
	words := tokenize("Hello, World! It's 2026.")
	joined := strings.Join(words, " ")
	if joined != "hello world it s" {
		t.Errorf("unexpected tokens: %q", joined)
	}
}
