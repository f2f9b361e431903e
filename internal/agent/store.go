package agent

import (
	"context"
	"time"

	"github.com/socialx/agent/internal/generation"
	"github.com/socialx/agent/internal/models"
	"github.com/socialx/agent/internal/social"
)

// ActionStore is the durable queue the executor and triggers operate on.
type ActionStore interface {
	Create(ctx context.Context, action *models.ScheduledAction) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledAction, error)
	MarkCompleted(ctx context.Context, id string, executedAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, executedAt time.Time) error
	CountTweetsToday(ctx context.Context, dayStart time.Time) (int, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityRecorder appends to and prunes the audit trail.
type ActivityRecorder interface {
	Log(ctx context.Context, entry *models.ActivityLog) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SocialClient is the platform surface the agent acts through.
type SocialClient interface {
	PostTweet(ctx context.Context, text string) (string, error)
	Reply(ctx context.Context, text, inReplyToTweetID string) (string, error)
	Like(ctx context.Context, tweetID string) error
	Retweet(ctx context.Context, tweetID string) error
	Follow(ctx context.Context, targetUserID string) error
	GetMentions(ctx context.Context, sinceID string) ([]social.Tweet, error)
	GetTimeline(ctx context.Context) ([]social.Tweet, error)
	GetUserTweets(ctx context.Context, maxResults int) ([]social.Tweet, error)
}

// Generator produces voice-matched content and screens it.
type Generator interface {
	GenerateTweet(ctx context.Context, profile *models.PersonalityProfile, recentPosts []string) (string, error)
	GenerateReply(ctx context.Context, profile *models.PersonalityProfile, author, text string) (string, error)
	DecideEngagement(ctx context.Context, profile *models.PersonalityProfile, author, text string) (generation.EngagementDecision, error)
	CheckSafety(ctx context.Context, text string) (bool, string)
	FindSimilar(ctx context.Context, query string, posts []models.HistoricalPost, k int) ([]string, error)
}

// ProfileStore reads the learned personality profile.
type ProfileStore interface {
	Get(ctx context.Context) (*models.PersonalityProfile, error)
}
