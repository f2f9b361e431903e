package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/socialx/agent/internal/database"
	"github.com/socialx/agent/internal/generation"
	"github.com/socialx/agent/internal/metrics"
	"github.com/socialx/agent/internal/models"
	"github.com/socialx/agent/internal/social"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCollector(t *testing.T) *metrics.Collector {
	t.Helper()
	c, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("failed to create collector: %v", err)
	}
	return c
}

// fakeActionStore is an in-memory ActionStore.
type fakeActionStore struct {
	mu      sync.Mutex
	actions map[string]*models.ScheduledAction
	nextID  int
}

func newFakeActionStore() *fakeActionStore {
	return &fakeActionStore{actions: make(map[string]*models.ScheduledAction)}
}

func (s *fakeActionStore) Create(ctx context.Context, action *models.ScheduledAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if action.ID == "" {
		s.nextID++
		action.ID = fmt.Sprintf("action-%03d", s.nextID)
	}
	if action.Status == "" {
		action.Status = models.ActionStatusPending
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	cp := *action
	s.actions[action.ID] = &cp
	return nil
}

func (s *fakeActionStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.ScheduledAction
	for _, a := range s.actions {
		if a.Due(now) {
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledFor.Equal(due[j].ScheduledFor) {
			return due[i].ScheduledFor.Before(due[j].ScheduledFor)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*models.ScheduledAction, len(due))
	for i, a := range due {
		a.Status = models.ActionStatusProcessing
		cp := *a
		claimed[i] = &cp
	}
	return claimed, nil
}

func (s *fakeActionStore) MarkCompleted(ctx context.Context, id string, executedAt time.Time) error {
	return s.finish(id, models.ActionStatusCompleted, "", executedAt)
}

func (s *fakeActionStore) MarkFailed(ctx context.Context, id string, errMsg string, executedAt time.Time) error {
	return s.finish(id, models.ActionStatusFailed, errMsg, executedAt)
}

func (s *fakeActionStore) finish(id string, status models.ActionStatus, errMsg string, executedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return database.ErrActionNotFound
	}
	if a.Status != models.ActionStatusProcessing {
		return fmt.Errorf("action %s is not in processing state", id)
	}
	a.Status = status
	a.ErrorMessage = errMsg
	a.ExecutedAt = &executedAt
	return nil
}

func (s *fakeActionStore) CountTweetsToday(ctx context.Context, dayStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.actions {
		if a.ActionType != models.ActionTypeTweet {
			continue
		}
		if a.Status != models.ActionStatusPending && a.Status != models.ActionStatusCompleted {
			continue
		}
		if !a.CreatedAt.Before(dayStart) {
			count++
		}
	}
	return count, nil
}

func (s *fakeActionStore) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, a := range s.actions {
		if a.Status.Terminal() && a.CreatedAt.Before(cutoff) {
			delete(s.actions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeActionStore) get(id string) *models.ScheduledAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.actions[id]
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func (s *fakeActionStore) byStatus(status models.ActionStatus) []*models.ScheduledAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ScheduledAction
	for _, a := range s.actions {
		if a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// fakeActivity is an in-memory ActivityRecorder.
type fakeActivity struct {
	mu      sync.Mutex
	entries []*models.ActivityLog
}

func (f *fakeActivity) Log(ctx context.Context, entry *models.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeActivity) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeActivity) ofType(t models.ActivityType) []*models.ActivityLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ActivityLog
	for _, e := range f.entries {
		if e.ActivityType == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeSocialClient records platform calls and returns configured errors.
type fakeSocialClient struct {
	mu sync.Mutex

	tweets   []string
	replies  []string
	likes    []string
	retweets []string
	follows  []string

	mentions   []social.Tweet
	timeline   []social.Tweet
	userTweets []social.Tweet

	postErr       error
	replyErr      error
	likeErr       error
	mentionErr    error
	userTweetsErr error
}

func (f *fakeSocialClient) PostTweet(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.tweets = append(f.tweets, text)
	return fmt.Sprintf("tweet-%d", len(f.tweets)), nil
}

func (f *fakeSocialClient) Reply(ctx context.Context, text, inReplyToTweetID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return "", f.replyErr
	}
	f.replies = append(f.replies, text)
	return fmt.Sprintf("reply-%d", len(f.replies)), nil
}

func (f *fakeSocialClient) Like(ctx context.Context, tweetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likeErr != nil {
		return f.likeErr
	}
	f.likes = append(f.likes, tweetID)
	return nil
}

func (f *fakeSocialClient) Retweet(ctx context.Context, tweetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retweets = append(f.retweets, tweetID)
	return nil
}

func (f *fakeSocialClient) Follow(ctx context.Context, targetUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows = append(f.follows, targetUserID)
	return nil
}

func (f *fakeSocialClient) GetMentions(ctx context.Context, sinceID string) ([]social.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mentionErr != nil {
		return nil, f.mentionErr
	}
	return f.mentions, nil
}

func (f *fakeSocialClient) GetTimeline(ctx context.Context) ([]social.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeline, nil
}

func (f *fakeSocialClient) GetUserTweets(ctx context.Context, maxResults int) ([]social.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userTweetsErr != nil {
		return nil, f.userTweetsErr
	}
	if len(f.userTweets) > maxResults {
		return f.userTweets[:maxResults], nil
	}
	return f.userTweets, nil
}

// fakeGenerator returns canned generation results.
type fakeGenerator struct {
	tweetText string
	tweetErr  error
	replyText string
	replyErr  error
	decision  generation.EngagementDecision
	unsafe    bool
	reason    string

	similar    []string
	similarErr error

	gotRecentPosts []string
	gotQuery       string
	gotPostCount   int
}

func (f *fakeGenerator) GenerateTweet(ctx context.Context, profile *models.PersonalityProfile, recentPosts []string) (string, error) {
	f.gotRecentPosts = recentPosts
	if f.tweetErr != nil {
		return "", f.tweetErr
	}
	return f.tweetText, nil
}

func (f *fakeGenerator) GenerateReply(ctx context.Context, profile *models.PersonalityProfile, author, text string) (string, error) {
	if f.replyErr != nil {
		return "", f.replyErr
	}
	return f.replyText, nil
}

func (f *fakeGenerator) DecideEngagement(ctx context.Context, profile *models.PersonalityProfile, author, text string) (generation.EngagementDecision, error) {
	return f.decision, nil
}

func (f *fakeGenerator) CheckSafety(ctx context.Context, text string) (bool, string) {
	if f.unsafe {
		return false, f.reason
	}
	return true, ""
}

func (f *fakeGenerator) FindSimilar(ctx context.Context, query string, posts []models.HistoricalPost, k int) ([]string, error) {
	f.gotQuery = query
	f.gotPostCount = len(posts)
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return f.similar, nil
}

// fakeProfiles serves a fixed profile.
type fakeProfiles struct {
	profile *models.PersonalityProfile
}

func (f *fakeProfiles) Get(ctx context.Context) (*models.PersonalityProfile, error) {
	if f.profile == nil {
		return nil, database.ErrProfileNotFound
	}
	return f.profile, nil
}
