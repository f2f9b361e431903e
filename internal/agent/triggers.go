package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/socialx/agent/internal/config"
	"github.com/socialx/agent/internal/generation"
	"github.com/socialx/agent/internal/models"
)

// Agent owns the autonomous behaviors: checking mentions, engaging with the
// timeline, generating original tweets, draining the queue, and sweeping
// aged records. Behaviors enqueue actions; only the executor touches the
// platform's write endpoints.
type Agent struct {
	cfg       config.AgentConfig
	actions   ActionStore
	activity  ActivityRecorder
	client    SocialClient
	generator Generator
	profiles  ProfileStore
	executor  *Executor
	logger    *slog.Logger

	mu            sync.Mutex
	lastMentionID string

	now func() time.Time
}

// NewAgent wires the autonomous behaviors together.
func NewAgent(
	cfg config.AgentConfig,
	actions ActionStore,
	activity ActivityRecorder,
	client SocialClient,
	generator Generator,
	profiles ProfileStore,
	executor *Executor,
	logger *slog.Logger,
) *Agent {
	return &Agent{
		cfg:       cfg,
		actions:   actions,
		activity:  activity,
		client:    client,
		generator: generator,
		profiles:  profiles,
		executor:  executor,
		logger:    logger,
		now:       time.Now,
	}
}

// Triggers returns the periodic trigger set for the scheduler.
func (a *Agent) Triggers() []Trigger {
	return []Trigger{
		{
			Name:     "mentions_check",
			Interval: a.cfg.MentionsInterval,
			Enabled:  func() bool { return a.cfg.AutoReply },
			Run:      a.CheckMentions,
		},
		{
			Name:     "timeline_engage",
			Interval: a.cfg.EngageInterval,
			Enabled:  func() bool { return a.cfg.AutoEngage },
			Run:      a.EngageTimeline,
		},
		{
			Name:     "tweet_generation",
			Interval: a.cfg.GenerateInterval,
			Enabled:  func() bool { return a.cfg.AutoTweet },
			Run:      a.GenerateTweet,
		},
		{
			Name:     "queue_drain",
			Interval: a.cfg.DrainInterval,
			Enabled:  nil, // the queue always drains
			Run:      a.DrainQueue,
		},
		{
			Name:     "retention_sweep",
			Interval: a.cfg.CleanupInterval,
			Enabled:  nil,
			Run:      a.SweepRetention,
		},
	}
}

// CheckMentions fetches new mentions and enqueues a reply action for each.
func (a *Agent) CheckMentions(ctx context.Context) error {
	a.mu.Lock()
	sinceID := a.lastMentionID
	a.mu.Unlock()

	mentions, err := a.client.GetMentions(ctx, sinceID)
	if err != nil {
		return fmt.Errorf("failed to fetch mentions: %w", err)
	}
	if len(mentions) == 0 {
		return nil
	}

	profile := a.currentProfile(ctx)
	enqueued := 0

	for _, mention := range mentions {
		a.trackMention(mention.ID)

		replyText, err := a.generator.GenerateReply(ctx, profile, mention.AuthorUsername, mention.Text)
		if err != nil {
			if errors.Is(err, generation.ErrSkipped) {
				a.logger.Info("mention skipped", "tweet_id", mention.ID)
				continue
			}
			a.logger.Error("failed to generate reply",
				"tweet_id", mention.ID, "error", err)
			continue
		}

		action := &models.ScheduledAction{
			ActionType:   models.ActionTypeReply,
			ScheduledFor: a.now(),
			Payload: models.ActionPayload{
				Text:          replyText,
				TargetTweetID: mention.ID,
				TargetAuthor:  mention.AuthorUsername,
			},
		}
		if err := a.actions.Create(ctx, action); err != nil {
			a.logger.Error("failed to enqueue reply", "tweet_id", mention.ID, "error", err)
			continue
		}
		enqueued++
	}

	a.recordActivity(ctx, models.ActivityTypeMentionsCheck,
		fmt.Sprintf("processed %d mentions, enqueued %d replies", len(mentions), enqueued), true, "")
	return nil
}

// EngageTimeline scans the home timeline and enqueues deferred engage
// actions. The like/reply/skip decision is made at execution time so the
// model sees the freshest context.
func (a *Agent) EngageTimeline(ctx context.Context) error {
	timeline, err := a.client.GetTimeline(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch timeline: %w", err)
	}
	if len(timeline) == 0 {
		return nil
	}

	enqueued := 0
	for _, tweet := range timeline {
		action := &models.ScheduledAction{
			ActionType:   models.ActionTypeEngage,
			ScheduledFor: a.now(),
			Payload: models.ActionPayload{
				TargetTweetID: tweet.ID,
				TargetText:    tweet.Text,
				TargetAuthor:  tweet.AuthorUsername,
			},
		}
		if err := a.actions.Create(ctx, action); err != nil {
			a.logger.Error("failed to enqueue engagement", "tweet_id", tweet.ID, "error", err)
			continue
		}
		enqueued++
	}

	a.recordActivity(ctx, models.ActivityTypeTimelineEngage,
		fmt.Sprintf("enqueued %d engagement candidates", enqueued), true, "")
	return nil
}

// GenerateTweet produces and enqueues one original tweet, subject to
// admission control: only inside active hours, and only while today's
// tweet count is under the daily cap.
func (a *Agent) GenerateTweet(ctx context.Context) error {
	now := a.now()

	hour := now.Hour()
	if hour < a.cfg.ActiveHoursStart || hour >= a.cfg.ActiveHoursEnd {
		a.logger.Debug("outside active hours, skipping tweet generation",
			"hour", hour,
			"window_start", a.cfg.ActiveHoursStart,
			"window_end", a.cfg.ActiveHoursEnd)
		return nil
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := a.actions.CountTweetsToday(ctx, dayStart)
	if err != nil {
		return fmt.Errorf("failed to count today's tweets: %w", err)
	}
	if count >= a.cfg.DailyTweetCap {
		a.logger.Info("daily tweet cap reached, skipping generation",
			"count", count,
			"cap", a.cfg.DailyTweetCap)
		return nil
	}

	profile := a.currentProfile(ctx)
	text, err := a.generator.GenerateTweet(ctx, profile, a.recentHistory(ctx, profile))
	if err != nil {
		if errors.Is(err, generation.ErrSkipped) {
			a.recordActivity(ctx, models.ActivityTypeTweetGeneration,
				"generation declined to produce a tweet", true, "")
			return nil
		}
		return fmt.Errorf("failed to generate tweet: %w", err)
	}

	action := &models.ScheduledAction{
		ActionType:   models.ActionTypeTweet,
		ScheduledFor: now,
		Payload:      models.ActionPayload{Text: text},
	}
	if err := a.actions.Create(ctx, action); err != nil {
		return fmt.Errorf("failed to enqueue tweet: %w", err)
	}

	a.recordActivity(ctx, models.ActivityTypeTweetGeneration,
		"generated and enqueued a tweet", true, "")
	a.recordActivity(ctx, models.ActivityTypeActionEnqueued,
		"enqueued tweet action", true, "")
	return nil
}

const (
	// historyFetchSize is how many of the account's own tweets are pulled
	// when seeding generation with prior posts.
	historyFetchSize = 50
	// similarHistoryLimit caps how many of those posts reach the prompt.
	similarHistoryLimit = 5
)

// recentHistory pulls the account's own recent posts and ranks them against
// the learned interests, so generation sees what the account already said
// on related topics and avoids repeating itself. History is advisory: any
// failure here degrades to generating without it.
func (a *Agent) recentHistory(ctx context.Context, profile *models.PersonalityProfile) []string {
	tweets, err := a.client.GetUserTweets(ctx, historyFetchSize)
	if err != nil {
		a.logger.Warn("failed to fetch posting history", "error", err)
		return nil
	}
	if len(tweets) == 0 {
		return nil
	}

	posts := make([]models.HistoricalPost, len(tweets))
	for i, tweet := range tweets {
		posts[i] = models.HistoricalPost{Text: tweet.Text, CreatedAt: tweet.CreatedAt}
	}

	similar, err := a.generator.FindSimilar(ctx, historyQuery(profile, posts), posts, similarHistoryLimit)
	if err != nil {
		a.logger.Warn("failed to rank posting history", "error", err)
		return nil
	}
	return similar
}

// historyQuery picks the text history is ranked against: the learned
// interests when a profile exists, otherwise the newest post.
func historyQuery(profile *models.PersonalityProfile, posts []models.HistoricalPost) string {
	if profile != nil && len(profile.Interests) > 0 {
		terms := make([]string, 0, len(profile.Interests))
		for _, interest := range profile.Interests {
			terms = append(terms, interest.Term)
		}
		return strings.Join(terms, " ")
	}
	return posts[0].Text
}

// DrainQueue executes one batch of due actions.
func (a *Agent) DrainQueue(ctx context.Context) error {
	_, err := a.executor.ExecuteDue(ctx)
	return err
}

// SweepRetention removes terminal actions and audit entries older than the
// retention window.
func (a *Agent) SweepRetention(ctx context.Context) error {
	cutoff := a.now().AddDate(0, 0, -a.cfg.RetentionDays)

	actionsDeleted, err := a.actions.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to sweep actions: %w", err)
	}

	logsDeleted, err := a.activity.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to sweep activity logs: %w", err)
	}

	a.recordActivity(ctx, models.ActivityTypeRetentionSweep,
		fmt.Sprintf("removed %d actions and %d activity entries", actionsDeleted, logsDeleted), true, "")

	a.logger.Info("retention sweep complete",
		"actions_deleted", actionsDeleted,
		"logs_deleted", logsDeleted,
		"cutoff", cutoff)
	return nil
}

// trackMention advances the since-ID cursor. Tweet IDs are numeric and
// increase over time, so string length then value orders them.
func (a *Agent) trackMention(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(id) > len(a.lastMentionID) || (len(id) == len(a.lastMentionID) && id > a.lastMentionID) {
		a.lastMentionID = id
	}
}

func (a *Agent) currentProfile(ctx context.Context) *models.PersonalityProfile {
	profile, err := a.profiles.Get(ctx)
	if err != nil {
		return nil
	}
	return profile
}

func (a *Agent) recordActivity(ctx context.Context, activityType models.ActivityType, description string, success bool, errMsg string) {
	entry := &models.ActivityLog{
		ActivityType: activityType,
		Description:  description,
		Success:      success,
		ErrorMessage: errMsg,
	}
	if err := a.activity.Log(ctx, entry); err != nil {
		a.logger.Error("failed to record activity", "error", err)
	}
}
