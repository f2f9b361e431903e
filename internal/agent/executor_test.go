package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/socialx/agent/internal/generation"
	"github.com/socialx/agent/internal/models"
	"github.com/socialx/agent/internal/social"
)

func newTestExecutor(t *testing.T, store *fakeActionStore, activity *fakeActivity, client *fakeSocialClient, gen *fakeGenerator) *Executor {
	t.Helper()
	return NewExecutor(store, activity, client, gen, &fakeProfiles{}, testCollector(t), testLogger(), 10)
}

func enqueue(t *testing.T, store *fakeActionStore, actionType models.ActionType, payload models.ActionPayload, scheduledFor time.Time) *models.ScheduledAction {
	t.Helper()
	action := &models.ScheduledAction{
		ActionType:   actionType,
		ScheduledFor: scheduledFor,
		Payload:      payload,
	}
	if err := store.Create(context.Background(), action); err != nil {
		t.Fatalf("failed to enqueue action: %v", err)
	}
	return action
}

func TestExecuteDueCompletesActions(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	client := &fakeSocialClient{}
	gen := &fakeGenerator{}
	e := newTestExecutor(t, store, activity, client, gen)

	past := time.Now().Add(-time.Minute)
	tweet := enqueue(t, store, models.ActionTypeTweet, models.ActionPayload{Text: "hello"}, past)
	like := enqueue(t, store, models.ActionTypeLike, models.ActionPayload{TargetTweetID: "555"}, past)

	n, err := e.ExecuteDue(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 executed actions, got %d", n)
	}

	if got := store.get(tweet.ID); got.Status != models.ActionStatusCompleted {
		t.Errorf("expected tweet completed, got %s", got.Status)
	}
	if got := store.get(like.ID); got.Status != models.ActionStatusCompleted {
		t.Errorf("expected like completed, got %s", got.Status)
	}
	if len(client.tweets) != 1 || client.tweets[0] != "hello" {
		t.Errorf("expected one posted tweet, got %v", client.tweets)
	}
	if len(client.likes) != 1 || client.likes[0] != "555" {
		t.Errorf("expected one like, got %v", client.likes)
	}
	if len(activity.ofType(models.ActivityTypeActionExecuted)) != 2 {
		t.Error("expected two action_executed audit entries")
	}
}

func TestExecuteDueBatchBound(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	client := &fakeSocialClient{}
	e := newTestExecutor(t, store, activity, client, &fakeGenerator{})

	past := time.Now().Add(-time.Minute)
	for i := 0; i < 15; i++ {
		enqueue(t, store, models.ActionTypeLike, models.ActionPayload{TargetTweetID: fmt.Sprintf("t%d", i)}, past)
	}

	n, err := e.ExecuteDue(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}
	if n != 10 {
		t.Errorf("expected batch of 10, got %d", n)
	}
	if remaining := len(store.byStatus(models.ActionStatusPending)); remaining != 5 {
		t.Errorf("expected 5 pending actions left, got %d", remaining)
	}
}

func TestExecuteDueFailureIsolation(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	client := &fakeSocialClient{postErr: errors.New("platform down")}
	e := newTestExecutor(t, store, activity, client, &fakeGenerator{})

	past := time.Now().Add(-time.Minute)
	failing := enqueue(t, store, models.ActionTypeTweet, models.ActionPayload{Text: "will fail"}, past)
	surviving := enqueue(t, store, models.ActionTypeLike, models.ActionPayload{TargetTweetID: "999"}, past.Add(time.Second))

	if _, err := e.ExecuteDue(context.Background()); err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}

	got := store.get(failing.ID)
	if got.Status != models.ActionStatusFailed {
		t.Errorf("expected failing action marked failed, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("expected error message recorded on failed action")
	}
	if store.get(surviving.ID).Status != models.ActionStatusCompleted {
		t.Error("expected the rest of the batch to complete despite the failure")
	}
	if len(activity.ofType(models.ActivityTypeActionFailed)) != 1 {
		t.Error("expected one action_failed audit entry")
	}
}

func TestExecuteDueQuotaExhaustion(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	client := &fakeSocialClient{
		postErr: &social.QuotaExceededError{Endpoint: social.EndpointTweet, RetryAfter: time.Minute},
	}
	e := newTestExecutor(t, store, activity, client, &fakeGenerator{})

	past := time.Now().Add(-time.Minute)
	action := enqueue(t, store, models.ActionTypeTweet, models.ActionPayload{Text: "blocked"}, past)

	if _, err := e.ExecuteDue(context.Background()); err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}

	if store.get(action.ID).Status != models.ActionStatusFailed {
		t.Error("expected quota-blocked action marked failed")
	}
	if len(activity.ofType(models.ActivityTypeQuotaExhausted)) != 1 {
		t.Error("expected a quota_exhausted audit entry")
	}
}

func TestExecuteDueSafetyRejection(t *testing.T) {
	store := newFakeActionStore()
	activity := &fakeActivity{}
	client := &fakeSocialClient{}
	gen := &fakeGenerator{unsafe: true, reason: "flagged: harassment"}
	e := newTestExecutor(t, store, activity, client, gen)

	past := time.Now().Add(-time.Minute)
	action := enqueue(t, store, models.ActionTypeTweet, models.ActionPayload{Text: "hostile"}, past)

	if _, err := e.ExecuteDue(context.Background()); err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}

	if store.get(action.ID).Status != models.ActionStatusFailed {
		t.Error("expected rejected content to fail the action")
	}
	if len(client.tweets) != 0 {
		t.Error("expected nothing posted after safety rejection")
	}
	if len(activity.ofType(models.ActivityTypeSafetyRejection)) != 1 {
		t.Error("expected a safety_rejection audit entry")
	}
}

func TestExecuteDueSkipsFutureActions(t *testing.T) {
	store := newFakeActionStore()
	e := newTestExecutor(t, store, &fakeActivity{}, &fakeSocialClient{}, &fakeGenerator{})

	future := enqueue(t, store, models.ActionTypeTweet, models.ActionPayload{Text: "later"}, time.Now().Add(time.Hour))

	n, err := e.ExecuteDue(context.Background())
	if err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no claims, got %d", n)
	}
	if store.get(future.ID).Status != models.ActionStatusPending {
		t.Error("expected future action to stay pending")
	}
}

func TestEngageActionLike(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{}
	gen := &fakeGenerator{decision: generation.EngagementDecision{Action: "like"}}
	e := newTestExecutor(t, store, &fakeActivity{}, client, gen)

	action := enqueue(t, store, models.ActionTypeEngage, models.ActionPayload{
		TargetTweetID: "777", TargetText: "interesting post", TargetAuthor: "friend",
	}, time.Now().Add(-time.Minute))

	if _, err := e.ExecuteDue(context.Background()); err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}

	if store.get(action.ID).Status != models.ActionStatusCompleted {
		t.Error("expected engage action completed")
	}
	if len(client.likes) != 1 || client.likes[0] != "777" {
		t.Errorf("expected target tweet liked, got %v", client.likes)
	}
}

func TestEngageActionReplyIsScreened(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{}
	gen := &fakeGenerator{
		decision: generation.EngagementDecision{Action: "reply", ReplyText: "nice work"},
		unsafe:   true,
		reason:   "flagged",
	}
	e := newTestExecutor(t, store, &fakeActivity{}, client, gen)

	action := enqueue(t, store, models.ActionTypeEngage, models.ActionPayload{
		TargetTweetID: "888", TargetText: "post", TargetAuthor: "someone",
	}, time.Now().Add(-time.Minute))

	if _, err := e.ExecuteDue(context.Background()); err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}

	if store.get(action.ID).Status != models.ActionStatusFailed {
		t.Error("expected screened-out engage reply to fail")
	}
	if len(client.replies) != 0 {
		t.Error("expected no reply posted after safety rejection")
	}
}

func TestEngageActionSkipCompletes(t *testing.T) {
	store := newFakeActionStore()
	client := &fakeSocialClient{}
	gen := &fakeGenerator{decision: generation.EngagementDecision{Action: "skip", Reasoning: "off topic"}}
	e := newTestExecutor(t, store, &fakeActivity{}, client, gen)

	action := enqueue(t, store, models.ActionTypeEngage, models.ActionPayload{
		TargetTweetID: "999", TargetText: "post",
	}, time.Now().Add(-time.Minute))

	if _, err := e.ExecuteDue(context.Background()); err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}

	if store.get(action.ID).Status != models.ActionStatusCompleted {
		t.Error("expected skipped engagement to complete")
	}
	if len(client.likes)+len(client.replies) != 0 {
		t.Error("expected no platform calls for a skip decision")
	}
}
