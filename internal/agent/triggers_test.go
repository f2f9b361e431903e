package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/socialx/agent/internal/config"
	"github.com/socialx/agent/internal/generation"
	"github.com/socialx/agent/internal/models"
	"github.com/socialx/agent/internal/social"
)

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		AutoTweet:         true,
		AutoReply:         true,
		AutoEngage:        true,
		ActiveHoursStart:  8,
		ActiveHoursEnd:    23,
		DailyTweetCap:     10,
		MentionsInterval:  5 * time.Minute,
		EngageInterval:    15 * time.Minute,
		GenerateInterval:  4 * time.Hour,
		DrainInterval:     time.Minute,
		CleanupInterval:   24 * time.Hour,
		ExecutorBatchSize: 10,
		RetentionDays:     30,
	}
}

func newTestAgent(t *testing.T, cfg config.AgentConfig, store *fakeActionStore, activity *fakeActivity, client *fakeSocialClient, gen *fakeGenerator) *Agent {
	t.Helper()
	executor := NewExecutor(store, activity, client, gen, &fakeProfiles{}, testCollector(t), testLogger(), cfg.ExecutorBatchSize)
	return NewAgent(cfg, store, activity, client, gen, &fakeProfiles{}, executor, testLogger())
}

func atHour(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 28, hour, 30, 0, 0, time.UTC)
	}
}

func TestCheckMentionsEnqueuesReplies(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	client := &fakeSocialClient{
		mentions: []social.Tweet{
			{ID: "100", Text: "@agent what do you think?", AuthorUsername: "alice"},
			{ID: "101", Text: "@agent hello", AuthorUsername: "bob"},
		},
	}
	gen := &fakeGenerator{replyText: "thanks for asking!"}
	a := newTestAgent(t, testAgentConfig(), store, activity, client, gen)

	if err := a.CheckMentions(context.Background()); err != nil {
		t.Fatalf("CheckMentions failed: %v", err)
	}

	pending := store.byStatus(models.ActionStatusPending)
	if len(pending) != 2 {
		t.Fatalf("expected 2 enqueued replies, got %d", len(pending))
	}
	for _, action := range pending {
		if action.ActionType != models.ActionTypeReply {
			t.Errorf("expected reply action, got %s", action.ActionType)
		}
		if action.Payload.Text != "thanks for asking!" {
			t.Errorf("unexpected reply text: %q", action.Payload.Text)
		}
	}
	if len(activity.ofType(models.ActivityTypeMentionsCheck)) != 1 {
		t.Error("expected a mentions_check audit entry")
	}
}

func TestCheckMentionsAdvancesCursor(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{
		mentions: []social.Tweet{
			{ID: "205", Text: "hi", AuthorUsername: "alice"},
			{ID: "199", Text: "hey", AuthorUsername: "bob"},
		},
	}
	a := newTestAgent(t, testAgentConfig(), store, &fakeActivity{}, client, &fakeGenerator{replyText: "hi"})

	if err := a.CheckMentions(context.Background()); err != nil {
		t.Fatalf("CheckMentions failed: %v", err)
	}

	a.mu.Lock()
	cursor := a.lastMentionID
	a.mu.Unlock()
	if cursor != "205" {
		t.Errorf("expected cursor at 205, got %q", cursor)
	}
}

func TestCheckMentionsSkipDecision(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{
		mentions: []social.Tweet{{ID: "300", Text: "spam", AuthorUsername: "spammer"}},
	}
	gen := &fakeGenerator{replyErr: fmt.Errorf("%w: spam", generation.ErrSkipped)}
	a := newTestAgent(t, testAgentConfig(), store, &fakeActivity{}, client, gen)

	if err := a.CheckMentions(context.Background()); err != nil {
		t.Fatalf("CheckMentions failed: %v", err)
	}
	if len(store.byStatus(models.ActionStatusPending)) != 0 {
		t.Error("expected no actions enqueued for skipped mentions")
	}
}

func TestEngageTimelineEnqueuesDeferredDecisions(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{
		timeline: []social.Tweet{
			{ID: "400", Text: "robotics update", AuthorUsername: "carol"},
			{ID: "401", Text: "lunch pics", AuthorUsername: "dave"},
		},
	}
	a := newTestAgent(t, testAgentConfig(), store, &fakeActivity{}, client, &fakeGenerator{})

	if err := a.EngageTimeline(context.Background()); err != nil {
		t.Fatalf("EngageTimeline failed: %v", err)
	}

	pending := store.byStatus(models.ActionStatusPending)
	if len(pending) != 2 {
		t.Fatalf("expected 2 engage actions, got %d", len(pending))
	}
	for _, action := range pending {
		if action.ActionType != models.ActionTypeEngage {
			t.Errorf("expected engage action, got %s", action.ActionType)
		}
		if action.Payload.TargetText == "" {
			t.Error("expected target text captured for deferred decision")
		}
	}
}

func TestGenerateTweetInsideActiveHours(t *testing.T) {
	store := newFakeActionStore()
	gen := &fakeGenerator{tweetText: "a fresh thought"}
	a := newTestAgent(t, testAgentConfig(), store, &fakeActivity{}, &fakeSocialClient{}, gen)
	a.now = atHour(12)

	if err := a.GenerateTweet(context.Background()); err != nil {
		t.Fatalf("GenerateTweet failed: %v", err)
	}

	pending := store.byStatus(models.ActionStatusPending)
	if len(pending) != 1 {
		t.Fatalf("expected 1 enqueued tweet, got %d", len(pending))
	}
	if pending[0].Payload.Text != "a fresh thought" {
		t.Errorf("unexpected tweet text: %q", pending[0].Payload.Text)
	}
}

func TestGenerateTweetOutsideActiveHours(t *testing.T) {
	store := newFakeActionStore()
	a := newTestAgent(t, testAgentConfig(), store, &fakeActivity{}, &fakeSocialClient{}, &fakeGenerator{tweetText: "x"})

	for _, hour := range []int{3, 7, 23} {
		a.now = atHour(hour)
		if err := a.GenerateTweet(context.Background()); err != nil {
			t.Fatalf("GenerateTweet failed at hour %d: %v", hour, err)
		}
	}

	if len(store.byStatus(models.ActionStatusPending)) != 0 {
		t.Error("expected no tweets enqueued outside active hours")
	}
}

func TestGenerateTweetRespectsDailyCap(t *testing.T) {
	cfg := testAgentConfig()
	cfg.DailyTweetCap = 2
	store := newFakeActionStore()
	a := newTestAgent(t, cfg, store, &fakeActivity{}, &fakeSocialClient{}, &fakeGenerator{tweetText: "x"})
	a.now = atHour(12)

	for i := 0; i < 5; i++ {
		if err := a.GenerateTweet(context.Background()); err != nil {
			t.Fatalf("GenerateTweet failed on pass %d: %v", i, err)
		}
	}

	if got := len(store.byStatus(models.ActionStatusPending)); got != 2 {
		t.Errorf("expected cap of 2 enqueued tweets, got %d", got)
	}
}

func TestGenerateTweetSeedsSimilarHistory(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{
		userTweets: []social.Tweet{
			{ID: "500", Text: "shipped the scheduler rewrite"},
			{ID: "499", Text: "coffee thoughts"},
			{ID: "498", Text: "benchmarking postgres row locks"},
		},
	}
	gen := &fakeGenerator{
		tweetText: "something new",
		similar:   []string{"shipped the scheduler rewrite", "benchmarking postgres row locks"},
	}
	profiles := &fakeProfiles{profile: &models.PersonalityProfile{
		Interests: []models.Interest{{Term: "golang"}, {Term: "databases"}},
	}}
	cfg := testAgentConfig()
	executor := NewExecutor(store, &fakeActivity{}, client, gen, profiles, testCollector(t), testLogger(), cfg.ExecutorBatchSize)
	a := NewAgent(cfg, store, &fakeActivity{}, client, gen, profiles, executor, testLogger())
	a.now = atHour(12)

	if err := a.GenerateTweet(context.Background()); err != nil {
		t.Fatalf("GenerateTweet failed: %v", err)
	}

	if gen.gotQuery != "golang databases" {
		t.Errorf("expected interests as ranking query, got %q", gen.gotQuery)
	}
	if gen.gotPostCount != 3 {
		t.Errorf("expected 3 posts ranked, got %d", gen.gotPostCount)
	}
	if len(gen.gotRecentPosts) != 2 ||
		gen.gotRecentPosts[0] != "shipped the scheduler rewrite" ||
		gen.gotRecentPosts[1] != "benchmarking postgres row locks" {
		t.Errorf("expected ranked history passed to generation, got %v", gen.gotRecentPosts)
	}
	if len(store.byStatus(models.ActionStatusPending)) != 1 {
		t.Error("expected the generated tweet enqueued")
	}
}

func TestGenerateTweetHistoryFailureDegrades(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{userTweetsErr: fmt.Errorf("timeline unavailable")}
	gen := &fakeGenerator{tweetText: "still posting"}
	a := newTestAgent(t, testAgentConfig(), store, &fakeActivity{}, client, gen)
	a.now = atHour(12)

	if err := a.GenerateTweet(context.Background()); err != nil {
		t.Fatalf("GenerateTweet failed: %v", err)
	}

	if gen.gotRecentPosts != nil {
		t.Errorf("expected no history on fetch failure, got %v", gen.gotRecentPosts)
	}
	if len(store.byStatus(models.ActionStatusPending)) != 1 {
		t.Error("expected tweet enqueued despite history failure")
	}
}

func TestHistoryQueryFallsBackToNewestPost(t *testing.T) {
	posts := []models.HistoricalPost{{Text: "newest"}, {Text: "older"}}
	if got := historyQuery(nil, posts); got != "newest" {
		t.Errorf("expected newest post as query without a profile, got %q", got)
	}

	profile := &models.PersonalityProfile{Interests: []models.Interest{{Term: "robotics"}}}
	if got := historyQuery(profile, posts); got != "robotics" {
		t.Errorf("expected interest terms as query, got %q", got)
	}
}

func TestGenerateTweetSkipDecision(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	gen := &fakeGenerator{tweetErr: fmt.Errorf("%w: nothing to say", generation.ErrSkipped)}
	a := newTestAgent(t, testAgentConfig(), store, activity, &fakeSocialClient{}, gen)
	a.now = atHour(12)

	if err := a.GenerateTweet(context.Background()); err != nil {
		t.Fatalf("GenerateTweet failed: %v", err)
	}
	if len(store.byStatus(models.ActionStatusPending)) != 0 {
		t.Error("expected no tweet enqueued when generation declines")
	}
	if len(activity.ofType(models.ActivityTypeTweetGeneration)) != 1 {
		t.Error("expected the declined generation to be audited")
	}
}

func TestSweepRetention(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	a := newTestAgent(t, testAgentConfig(), store, activity, &fakeSocialClient{}, &fakeGenerator{})

	old := time.Now().AddDate(0, 0, -45)
	aged := &models.ScheduledAction{
		ActionType:   models.ActionTypeTweet,
		ScheduledFor: old,
		Status:       models.ActionStatusCompleted,
		CreatedAt:    old,
	}
	if err := store.Create(context.Background(), aged); err != nil {
		t.Fatalf("failed to seed aged action: %v", err)
	}
	recent := enqueue(t, store, models.ActionTypeTweet, models.ActionPayload{Text: "keep"}, time.Now())

	if err := a.SweepRetention(context.Background()); err != nil {
		t.Fatalf("SweepRetention failed: %v", err)
	}

	if store.get(aged.ID) != nil {
		t.Error("expected aged terminal action removed")
	}
	if store.get(recent.ID) == nil {
		t.Error("expected recent action preserved")
	}
	if len(activity.ofType(models.ActivityTypeRetentionSweep)) != 1 {
		t.Error("expected a retention_sweep audit entry")
	}
}

func TestTriggersFlagGating(t *testing.T) {
	cfg := testAgentConfig()
	cfg.AutoTweet = false
	a := newTestAgent(t, cfg, newFakeActionStore(), &fakeActivity{}, &fakeSocialClient{}, &fakeGenerator{})

	var genTrigger, drainTrigger *Trigger
	triggers := a.Triggers()
	for i := range triggers {
		switch triggers[i].Name {
		case "tweet_generation":
			genTrigger = &triggers[i]
		case "queue_drain":
			drainTrigger = &triggers[i]
		}
	}

	if genTrigger == nil || drainTrigger == nil {
		t.Fatal("expected tweet_generation and queue_drain triggers")
	}
	if genTrigger.Enabled() {
		t.Error("expected tweet generation disabled by flag")
	}
	if drainTrigger.Enabled != nil {
		t.Error("expected queue drain to have no flag gate")
	}
}
