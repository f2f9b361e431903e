// Package generation wraps the OpenAI API for voice-matched content
// generation, engagement decisions, safety screening, and post similarity.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/socialx/agent/internal/config"
	"github.com/socialx/agent/internal/models"
)

// ErrSkipped indicates the model decided the content is not worth posting.
var ErrSkipped = errors.New("generation skipped")

const maxTweetLength = 280

// Client wraps the OpenAI API for the agent's generation needs.
type Client struct {
	client *openai.Client
	cfg    config.OpenAIConfig
	logger *slog.Logger
}

// NewClient creates a new generation client.
func NewClient(cfg config.OpenAIConfig, logger *slog.Logger) *Client {
	return &Client{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}
}

// decision is the JSON protocol the model answers with for generation and
// engagement prompts.
type decision struct {
	Action    string `json:"action"`
	Text      string `json:"text"`
	Reasoning string `json:"reasoning"`
}

// GenerateTweet produces a new standalone tweet in the learned voice. The
// model may decline with a SKIP decision, surfaced as ErrSkipped.
func (c *Client) GenerateTweet(ctx context.Context, profile *models.PersonalityProfile, recentPosts []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Write a single new tweet for this account.\n")
	sb.WriteString(voiceContext(profile))

	if len(recentPosts) > 0 {
		sb.WriteString("\nRecent posts, do not repeat these topics:\n")
		for _, p := range recentPosts {
			sb.WriteString("- " + p + "\n")
		}
	}

	sb.WriteString(`
Respond with ONLY valid JSON in this exact format:
{"action": "POST|SKIP", "text": "the tweet text (empty if SKIP)", "reasoning": "brief explanation"}

Requirements if posting:
1. Stay under 280 characters
2. Match the account's voice and vocabulary exactly
3. SKIP if you cannot produce something the account would genuinely say

Respond with ONLY the JSON. No markdown, no code blocks.`)

	d, err := c.generateDecision(ctx, systemPromptFor(profile), sb.String())
	if err != nil {
		return "", err
	}
	if strings.EqualFold(d.Action, "SKIP") {
		c.logger.Info("tweet generation skipped", "reasoning", d.Reasoning)
		return "", fmt.Errorf("%w: %s", ErrSkipped, d.Reasoning)
	}

	return finalizeTweetText(d.Text, c.logger)
}

// GenerateReply produces a reply to a mention in the learned voice.
func (c *Client) GenerateReply(ctx context.Context, profile *models.PersonalityProfile, author, text string) (string, error) {
	prompt := fmt.Sprintf(`Someone mentioned this account on Twitter.

Author: @%s
Their tweet: %s

%s
Write a reply in the account's voice.

Respond with ONLY valid JSON in this exact format:
{"action": "POST|SKIP", "text": "the reply text (empty if SKIP)", "reasoning": "brief explanation"}

Requirements if posting:
1. Stay under 280 characters
2. Be conversational, this is a reply
3. SKIP if the mention is spam, hostile bait, or needs no response

Respond with ONLY the JSON. No markdown, no code blocks.`, author, text, voiceContext(profile))

	d, err := c.generateDecision(ctx, systemPromptFor(profile), prompt)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(d.Action, "SKIP") {
		c.logger.Info("reply skipped", "author", author, "reasoning", d.Reasoning)
		return "", fmt.Errorf("%w: %s", ErrSkipped, d.Reasoning)
	}

	return finalizeTweetText(d.Text, c.logger)
}

// EngagementDecision is the model's verdict on a timeline tweet.
type EngagementDecision struct {
	// Action is one of "like", "reply", or "skip".
	Action    string
	ReplyText string
	Reasoning string
}

// DecideEngagement asks the model whether and how to engage with a timeline
// tweet. Parse failures resolve to skip; engaging is the action that costs
// quota, so uncertainty means doing nothing.
func (c *Client) DecideEngagement(ctx context.Context, profile *models.PersonalityProfile, author, text string) (EngagementDecision, error) {
	prompt := fmt.Sprintf(`This tweet appeared on the account's timeline.

Author: @%s
Tweet: %s

%s
Decide whether the account would engage with this tweet.

Respond with ONLY valid JSON in this exact format:
{"action": "like|reply|skip", "text": "reply text if action is reply, else empty", "reasoning": "brief explanation"}

Guidance:
1. "like" for content the account would appreciate but not respond to
2. "reply" only when the account has something genuine to add, under 280 characters
3. "skip" for anything off-interest, promotional, or contentious

Respond with ONLY the JSON. No markdown, no code blocks.`, author, text, voiceContext(profile))

	d, err := c.generateDecision(ctx, systemPromptFor(profile), prompt)
	if err != nil {
		c.logger.Warn("engagement decision failed, skipping", "author", author, "error", err)
		return EngagementDecision{Action: "skip", Reasoning: "decision unavailable"}, nil
	}

	action := strings.ToLower(strings.TrimSpace(d.Action))
	switch action {
	case "like", "skip":
		return EngagementDecision{Action: action, Reasoning: d.Reasoning}, nil
	case "reply":
		replyText, err := finalizeTweetText(d.Text, c.logger)
		if err != nil {
			return EngagementDecision{Action: "skip", Reasoning: "empty reply text"}, nil
		}
		return EngagementDecision{Action: "reply", ReplyText: replyText, Reasoning: d.Reasoning}, nil
	default:
		return EngagementDecision{Action: "skip", Reasoning: fmt.Sprintf("unrecognized action %q", d.Action)}, nil
	}
}

// CheckSafety screens text through the moderation endpoint before posting.
// A moderation outage fails closed: unscreened content is never posted.
func (c *Client) CheckSafety(ctx context.Context, text string) (bool, string) {
	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: openai.ModerationOmniLatest,
	})
	if err != nil {
		c.logger.Error("moderation check failed, rejecting content", "error", err)
		return false, "moderation unavailable"
	}

	if len(resp.Results) == 0 {
		return false, "empty moderation response"
	}

	result := resp.Results[0]
	if result.Flagged {
		return false, flaggedCategories(result)
	}
	return true, ""
}

func flaggedCategories(result openai.Result) string {
	var flagged []string
	cats := result.Categories
	for _, c := range []struct {
		name string
		hit  bool
	}{
		{"hate", cats.Hate},
		{"harassment", cats.Harassment},
		{"self-harm", cats.SelfHarm},
		{"sexual", cats.Sexual},
		{"violence", cats.Violence},
	} {
		if c.hit {
			flagged = append(flagged, c.name)
		}
	}
	if len(flagged) == 0 {
		return "flagged"
	}
	return "flagged: " + strings.Join(flagged, ", ")
}

// Embed returns embedding vectors for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// FindSimilar returns up to k historical posts most similar to the query,
// ranked by embedding cosine similarity. Used to seed generation prompts
// with the account's own phrasing on related topics.
func (c *Client) FindSimilar(ctx context.Context, query string, posts []models.HistoricalPost, k int) ([]string, error) {
	if len(posts) == 0 || k <= 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(posts)+1)
	texts = append(texts, query)
	for _, p := range posts {
		texts = append(texts, p.Text)
	}

	vectors, err := c.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	queryVec := vectors[0]
	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(posts))
	for i, p := range posts {
		ranked = append(ranked, scored{text: p.Text, score: cosineSimilarity(queryVec, vectors[i+1])})
	}

	// Selection sort over the top k keeps this simple for small inputs.
	if k > len(ranked) {
		k = len(ranked)
	}
	for i := 0; i < k; i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[best].score {
				best = j
			}
		}
		ranked[i], ranked[best] = ranked[best], ranked[i]
	}

	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].text
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// generateDecision runs a chat completion and parses the JSON decision.
func (c *Client) generateDecision(ctx context.Context, systemPrompt, userPrompt string) (decision, error) {
	content, err := c.generateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return decision{}, err
	}
	return parseDecision(content)
}

// parseDecision extracts the decision JSON from model output, tolerating
// code fences and surrounding prose.
func parseDecision(content string) (decision, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Fall back to the outermost braces if extra prose surrounds the JSON.
	if !strings.HasPrefix(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end <= start {
			return decision{}, fmt.Errorf("no JSON object in model response: %q", content)
		}
		cleaned = cleaned[start : end+1]
	}

	var d decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return decision{}, fmt.Errorf("failed to parse model decision: %w", err)
	}
	if d.Action == "" {
		return decision{}, fmt.Errorf("model decision missing action field")
	}
	return d, nil
}

func finalizeTweetText(text string, logger *slog.Logger) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned empty text")
	}
	if runes := []rune(text); len(runes) > maxTweetLength {
		logger.Warn("generated text exceeds 280 characters, truncating", "length", len(runes))
		text = string(runes[:maxTweetLength-3]) + "..."
	}
	return text, nil
}

// generateText runs a chat completion, handling reasoning models that
// reject temperature and system messages.
func (c *Client) generateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	apiCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := strings.ToLower(c.cfg.Model)
	isReasoningModel := strings.Contains(model, "o1") ||
		strings.Contains(model, "o3") ||
		strings.Contains(model, "o4") ||
		strings.Contains(model, "gpt-5")

	var request openai.ChatCompletionRequest
	if isReasoningModel {
		request = openai.ChatCompletionRequest{
			Model: c.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: systemPrompt + "\n\n" + userPrompt},
			},
		}
	} else {
		request = openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Temperature: c.cfg.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		}
	}
	if c.cfg.MaxTokens > 0 {
		request.MaxCompletionTokens = c.cfg.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(apiCtx, request)
	if err != nil {
		return "", fmt.Errorf("openai api call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from model %s", c.cfg.Model)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response from model %s (finish_reason: %s)",
			c.cfg.Model, resp.Choices[0].FinishReason)
	}

	c.logger.Debug("generation response received",
		"model", c.cfg.Model,
		"content_length", len(content))

	return content, nil
}

// systemPromptFor builds the persona system prompt from the learned profile.
func systemPromptFor(profile *models.PersonalityProfile) string {
	if profile == nil {
		return "You are the voice of a Twitter account. Write naturally and concisely. Always respond with valid JSON only."
	}
	return fmt.Sprintf("You are the voice of a Twitter account. %s Always respond with valid JSON only.", profile.Description)
}

// voiceContext renders the learned profile as prompt context.
func voiceContext(profile *models.PersonalityProfile) string {
	if profile == nil {
		return "\nNo personality profile is available yet. Write in a neutral, friendly voice.\n"
	}

	var sb strings.Builder
	sb.WriteString("\n=== ACCOUNT VOICE ===\n")
	sb.WriteString(profile.Description + "\n")

	if len(profile.Vocabulary.CommonWords) > 0 {
		sb.WriteString("Frequent words: " + strings.Join(profile.Vocabulary.CommonWords, ", ") + "\n")
	}
	if len(profile.Vocabulary.CommonPhrases) > 0 {
		sb.WriteString("Frequent phrases: " + strings.Join(profile.Vocabulary.CommonPhrases, ", ") + "\n")
	}
	if len(profile.Interests) > 0 {
		terms := make([]string, 0, len(profile.Interests))
		for _, i := range profile.Interests {
			terms = append(terms, i.Term)
		}
		sb.WriteString("Interests: " + strings.Join(terms, ", ") + "\n")
	}

	style := profile.Style
	sb.WriteString(fmt.Sprintf("Typical post length: about %.0f characters.\n", style.AvgPostLength))
	if style.UsesEmojis {
		sb.WriteString("Uses emojis occasionally.\n")
	} else {
		sb.WriteString("Does not use emojis.\n")
	}
	if style.AsksQuestions {
		sb.WriteString("Often poses questions to followers.\n")
	}
	if style.Enthusiastic {
		sb.WriteString("Enthusiastic tone with exclamation points.\n")
	}

	return sb.String()
}
