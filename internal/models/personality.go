package models

import "time"

// TraitScores holds Big Five personality dimensions on a 0-1 scale.
type TraitScores struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// WritingStyle captures surface characteristics of how the user writes.
type WritingStyle struct {
	AvgPostLength   float64 `json:"avg_post_length"`
	AvgWords        float64 `json:"avg_words"`
	UsesPunctuation bool    `json:"uses_punctuation"`
	UsesEmojis      bool    `json:"uses_emojis"`
	AsksQuestions   bool    `json:"asks_questions"`
	Enthusiastic    bool    `json:"enthusiastic"`
}

// PostingPatterns describes when the user historically posts.
type PostingPatterns struct {
	BestHours     []int    `json:"best_hours"`
	BestDays      []string `json:"best_days"`
	AvgPerDay     float64  `json:"avg_per_day"`
	TotalAnalyzed int      `json:"total_analyzed"`
}

// Vocabulary summarizes the user's lexicon.
type Vocabulary struct {
	UniqueWords   int      `json:"unique_words"`
	TotalWords    int      `json:"total_words"`
	CommonWords   []string `json:"common_words"`
	CommonPhrases []string `json:"common_phrases"`
	AvgWordLength float64  `json:"avg_word_length"`
}

// Interest is a weighted topic the user appears to care about.
type Interest struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// PersonalityProfile is the learned voice model for the account, built from
// historical posts and used to steer generation prompts.
type PersonalityProfile struct {
	ID          string          `json:"id"`
	Traits      TraitScores     `json:"traits"`
	Description string          `json:"description"`
	Style       WritingStyle    `json:"style"`
	Patterns    PostingPatterns `json:"patterns"`
	Vocabulary  Vocabulary      `json:"vocabulary"`
	Interests   []Interest      `json:"interests"`
	SampleCount int             `json:"sample_count"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HistoricalPost is one post from the account's history, used as input to
// personality analysis and as voice-matching context for generation.
type HistoricalPost struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
