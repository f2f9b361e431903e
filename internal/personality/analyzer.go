// Package personality builds a voice model for the account from its
// historical posts: Big Five trait estimates, writing style metrics,
// posting-time patterns, vocabulary, and interests.
package personality

import (
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/socialx/agent/internal/models"
)

// traitIndicator maps a Big Five dimension to the lexical signals that
// raise it and how strongly overall sentiment moves it.
type traitIndicator struct {
	words           []string
	sentimentWeight float64
}

var traitIndicators = map[string]traitIndicator{
	"openness": {
		words:           []string{"creative", "innovative", "curious", "imaginative", "explore", "new", "idea", "art"},
		sentimentWeight: 0.3,
	},
	"conscientiousness": {
		words:           []string{"plan", "organize", "efficient", "reliable", "careful", "detail", "goal", "schedule"},
		sentimentWeight: 0.2,
	},
	"extraversion": {
		words:           []string{"social", "outgoing", "energetic", "enthusiastic", "party", "people", "talk", "fun"},
		sentimentWeight: 0.4,
	},
	"agreeableness": {
		words:           []string{"kind", "helpful", "trust", "cooperative", "compassionate", "caring", "empathy", "support"},
		sentimentWeight: 0.5,
	},
	"neuroticism": {
		words:           []string{"stress", "worry", "anxious", "nervous", "unstable", "emotional", "moody", "fear"},
		sentimentWeight: -0.4,
	},
}

var positiveWords = map[string]bool{
	"good": true, "great": true, "love": true, "happy": true, "awesome": true,
	"excited": true, "amazing": true, "best": true, "wonderful": true, "enjoy": true,
	"beautiful": true, "fantastic": true, "glad": true, "nice": true, "thanks": true,
}

var negativeWords = map[string]bool{
	"bad": true, "hate": true, "terrible": true, "awful": true, "sad": true,
	"angry": true, "worst": true, "annoying": true, "horrible": true, "disappointed": true,
	"frustrating": true, "broken": true, "wrong": true, "ugh": true,
}

// Analyzer extracts personality traits and writing style from text samples.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a new personality analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// AnalyzeTraits scores the Big Five dimensions from post texts on a 0-1
// scale. Empty input returns neutral defaults.
func (a *Analyzer) AnalyzeTraits(texts []string) models.TraitScores {
	if len(texts) == 0 {
		a.logger.Warn("no texts provided for personality analysis")
		return defaultTraits()
	}

	wordFreq := make(map[string]int)
	totalWords := 0
	sentimentSum := 0.0

	for _, text := range texts {
		words := tokenize(text)
		for _, w := range words {
			wordFreq[w]++
			totalWords++
		}
		sentimentSum += sentiment(words)
	}
	avgSentiment := sentimentSum / float64(len(texts))

	scores := make(map[string]float64, len(traitIndicators))
	for trait, ind := range traitIndicators {
		score := 0.5

		traitWordCount := 0
		for _, w := range ind.words {
			traitWordCount += wordFreq[w]
		}
		if totalWords > 0 {
			score += float64(traitWordCount) / float64(totalWords) * 0.3
		}

		score += avgSentiment * ind.sentimentWeight
		scores[trait] = clamp01(score)
	}

	result := models.TraitScores{
		Openness:          round3(scores["openness"]),
		Conscientiousness: round3(scores["conscientiousness"]),
		Extraversion:      round3(scores["extraversion"]),
		Agreeableness:     round3(scores["agreeableness"]),
		Neuroticism:       round3(scores["neuroticism"]),
	}

	a.logger.Info("personality analysis complete",
		"texts", len(texts),
		"openness", result.Openness,
		"extraversion", result.Extraversion)

	return result
}

// Describe renders trait scores as a short human-readable phrase, used in
// generation prompts.
func (a *Analyzer) Describe(scores models.TraitScores) string {
	var parts []string
	if scores.Openness > 0.6 {
		parts = append(parts, "creative and open to new experiences")
	}
	if scores.Conscientiousness > 0.6 {
		parts = append(parts, "organized and detail-oriented")
	}
	if scores.Extraversion > 0.6 {
		parts = append(parts, "outgoing and energetic")
	}
	if scores.Agreeableness > 0.6 {
		parts = append(parts, "friendly and cooperative")
	}
	if scores.Neuroticism < 0.4 {
		parts = append(parts, "emotionally stable")
	}

	if len(parts) == 0 {
		return "balanced and adaptable"
	}
	return strings.Join(parts, ", ")
}

// ExtractWritingStyle measures surface characteristics of the posts.
func (a *Analyzer) ExtractWritingStyle(texts []string) models.WritingStyle {
	if len(texts) == 0 {
		return models.WritingStyle{}
	}

	var totalLength, totalWordCount, punctuationCount, emojiCount int
	var questions, exclamations int

	for _, text := range texts {
		totalLength += len(text)
		totalWordCount += len(strings.Fields(text))
		for _, r := range text {
			switch {
			case strings.ContainsRune(",.!?;:", r):
				punctuationCount++
			case r > 0x1F000:
				emojiCount++
			}
		}
		questions += strings.Count(text, "?")
		exclamations += strings.Count(text, "!")
	}

	n := float64(len(texts))
	return models.WritingStyle{
		AvgPostLength:   round1(float64(totalLength) / n),
		AvgWords:        round1(float64(totalWordCount) / n),
		UsesPunctuation: float64(punctuationCount)/n > 2,
		UsesEmojis:      float64(emojiCount)/n > 0.5,
		AsksQuestions:   float64(questions)/n > 0.1,
		Enthusiastic:    float64(exclamations)/n > 0.2,
	}
}

func defaultTraits() models.TraitScores {
	return models.TraitScores{
		Openness:          0.5,
		Conscientiousness: 0.5,
		Extraversion:      0.5,
		Agreeableness:     0.5,
		Neuroticism:       0.3,
	}
}

// tokenize lowercases and splits text into alphabetic words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// sentiment returns a rough polarity in [-1, 1] from lexicon hits.
func sentiment(words []string) float64 {
	pos, neg := 0, 0
	for _, w := range words {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
