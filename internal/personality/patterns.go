package personality

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/socialx/agent/internal/models"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"is": true, "it": true, "this": true, "that": true, "with": true,
	"was": true, "are": true, "you": true, "not": true, "have": true,
}

// PatternLearner derives behavioral patterns from the account's history.
type PatternLearner struct {
	logger *slog.Logger
}

// NewPatternLearner creates a new pattern learner.
func NewPatternLearner(logger *slog.Logger) *PatternLearner {
	return &PatternLearner{logger: logger}
}

// LearnPostingPatterns finds when the account typically posts: the top
// posting hours, top weekdays, and average posts per day over the spanned
// date range.
func (p *PatternLearner) LearnPostingPatterns(posts []models.HistoricalPost) models.PostingPatterns {
	if len(posts) == 0 {
		return models.PostingPatterns{BestHours: []int{}, BestDays: []string{}}
	}

	hourCounts := make(map[int]int)
	dayCounts := make(map[string]int)
	for _, post := range posts {
		hourCounts[post.CreatedAt.Hour()]++
		dayCounts[post.CreatedAt.Weekday().String()]++
	}

	bestHours := topIntKeys(hourCounts, 5)
	bestDays := topStringKeys(dayCounts, 3)

	patterns := models.PostingPatterns{
		BestHours:     bestHours,
		BestDays:      bestDays,
		AvgPerDay:     round2(float64(len(posts)) / float64(dateRangeDays(posts))),
		TotalAnalyzed: len(posts),
	}

	p.logger.Info("posting patterns learned",
		"posts", len(posts),
		"best_hours", bestHours,
		"avg_per_day", patterns.AvgPerDay)

	return patterns
}

// LearnVocabulary summarizes the account's lexicon: unique and total word
// counts, the most frequent words, and the most frequent bigrams.
func (p *PatternLearner) LearnVocabulary(texts []string) models.Vocabulary {
	if len(texts) == 0 {
		return models.Vocabulary{CommonWords: []string{}, CommonPhrases: []string{}}
	}

	wordFreq := make(map[string]int)
	uniqueWords := make(map[string]bool)
	totalWords := 0
	totalWordLength := 0

	bigramFreq := make(map[string]int)

	for _, text := range texts {
		words := strings.Fields(strings.ToLower(text))
		for i, w := range words {
			uniqueWords[w] = true
			totalWords++
			totalWordLength += len(w)

			if !stopWords[w] && len(w) > 2 {
				wordFreq[w]++
			}
			if i < len(words)-1 {
				bigramFreq[w+" "+words[i+1]]++
			}
		}
	}

	avgWordLength := 0.0
	if totalWords > 0 {
		avgWordLength = float64(totalWordLength) / float64(totalWords)
	}

	vocab := models.Vocabulary{
		UniqueWords:   len(uniqueWords),
		TotalWords:    totalWords,
		CommonWords:   topStringKeys(wordFreq, 20),
		CommonPhrases: topStringKeys(bigramFreq, 10),
		AvgWordLength: round2(avgWordLength),
	}

	p.logger.Info("vocabulary learned", "unique_words", vocab.UniqueWords)
	return vocab
}

// IdentifyInterests scores recurring substantive terms as interests, by
// frequency relative to the corpus.
func (p *PatternLearner) IdentifyInterests(texts []string) []models.Interest {
	if len(texts) == 0 {
		return nil
	}

	freq := make(map[string]int)
	total := 0
	for _, text := range texts {
		for _, w := range tokenize(text) {
			if len(w) > 3 && !stopWords[w] {
				freq[w]++
				total++
			}
		}
	}
	if total == 0 {
		return nil
	}

	interests := make([]models.Interest, 0, len(freq))
	for term, count := range freq {
		// Single mentions are noise, not interests.
		if count < 2 {
			continue
		}
		interests = append(interests, models.Interest{
			Term:  term,
			Score: round3(float64(count) / float64(total)),
		})
	}

	sort.Slice(interests, func(i, j int) bool {
		if interests[i].Score != interests[j].Score {
			return interests[i].Score > interests[j].Score
		}
		return interests[i].Term < interests[j].Term
	})

	if len(interests) > 15 {
		interests = interests[:15]
	}

	p.logger.Info("interests identified", "count", len(interests))
	return interests
}

// BuildProfile runs the full analysis pipeline over the account's posts.
func BuildProfile(posts []models.HistoricalPost, analyzer *Analyzer, learner *PatternLearner) *models.PersonalityProfile {
	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = p.Text
	}

	traits := analyzer.AnalyzeTraits(texts)

	return &models.PersonalityProfile{
		Traits:      traits,
		Description: analyzer.Describe(traits),
		Style:       analyzer.ExtractWritingStyle(texts),
		Patterns:    learner.LearnPostingPatterns(posts),
		Vocabulary:  learner.LearnVocabulary(texts),
		Interests:   learner.IdentifyInterests(texts),
		SampleCount: len(posts),
	}
}

func dateRangeDays(posts []models.HistoricalPost) int {
	if len(posts) < 2 {
		return 1
	}
	min, max := posts[0].CreatedAt, posts[0].CreatedAt
	for _, p := range posts[1:] {
		if p.CreatedAt.Before(min) {
			min = p.CreatedAt
		}
		if p.CreatedAt.After(max) {
			max = p.CreatedAt
		}
	}
	days := int(max.Sub(min).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

type kv struct {
	key   string
	count int
}

func topStringKeys(freq map[string]int, n int) []string {
	pairs := make([]kv, 0, len(freq))
	for k, c := range freq {
		pairs = append(pairs, kv{k, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.key
	}
	return out
}

func topIntKeys(freq map[int]int, n int) []int {
	type ikv struct {
		key   int
		count int
	}
	pairs := make([]ikv, 0, len(freq))
	for k, c := range freq {
		pairs = append(pairs, ikv{k, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]int, len(pairs))
	for i, p := range pairs {
		out[i] = p.key
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
