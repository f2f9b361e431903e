package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/socialx/agent/internal/database"
	"github.com/socialx/agent/internal/metrics"
	"github.com/socialx/agent/internal/models"
	"github.com/socialx/agent/internal/social"
)

// Executor drains the action queue in bounded batches. One failing action
// never stops the rest of its batch.
type Executor struct {
	actions   ActionStore
	activity  ActivityRecorder
	client    SocialClient
	generator Generator
	profiles  ProfileStore
	collector *metrics.Collector
	logger    *slog.Logger
	batchSize int

	now func() time.Time
}

// NewExecutor creates an executor that claims at most batchSize actions per
// pass.
func NewExecutor(
	actions ActionStore,
	activity ActivityRecorder,
	client SocialClient,
	generator Generator,
	profiles ProfileStore,
	collector *metrics.Collector,
	logger *slog.Logger,
	batchSize int,
) *Executor {
	return &Executor{
		actions:   actions,
		activity:  activity,
		client:    client,
		generator: generator,
		profiles:  profiles,
		collector: collector,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// ExecuteDue claims one batch of due actions and executes them in schedule
// order. Returns how many actions were claimed.
func (e *Executor) ExecuteDue(ctx context.Context) (int, error) {
	batch, err := e.actions.ClaimDue(ctx, e.now(), e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim due actions: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	e.logger.Info("executing action batch", "count", len(batch))

	for _, action := range batch {
		e.executeOne(ctx, action)
	}

	return len(batch), nil
}

// executeOne runs a single claimed action to a terminal state.
func (e *Executor) executeOne(ctx context.Context, action *models.ScheduledAction) {
	err := e.perform(ctx, action)
	executedAt := e.now()

	if err == nil {
		if markErr := e.actions.MarkCompleted(ctx, action.ID, executedAt); markErr != nil {
			e.logger.Error("failed to mark action completed",
				"action_id", action.ID, "error", markErr)
			return
		}
		e.collector.RecordAction(string(action.ActionType), "completed")
		e.recordActivity(ctx, models.ActivityTypeActionExecuted,
			fmt.Sprintf("executed %s action", action.ActionType), action, true, "")
		return
	}

	if qe, ok := social.IsQuotaExceeded(err); ok {
		e.collector.RecordQuotaRejection(qe.Endpoint)
		e.recordActivity(ctx, models.ActivityTypeQuotaExhausted,
			fmt.Sprintf("%s endpoint quota exhausted", qe.Endpoint), action, false, err.Error())
		e.logger.Warn("action blocked by rate limit",
			"action_id", action.ID,
			"endpoint", qe.Endpoint,
			"retry_after", qe.RetryAfter)
	}

	if markErr := e.actions.MarkFailed(ctx, action.ID, err.Error(), executedAt); markErr != nil {
		e.logger.Error("failed to mark action failed",
			"action_id", action.ID, "error", markErr)
		return
	}
	e.collector.RecordAction(string(action.ActionType), "failed")
	e.recordActivity(ctx, models.ActivityTypeActionFailed,
		fmt.Sprintf("%s action failed", action.ActionType), action, false, err.Error())
	e.logger.Error("action failed",
		"action_id", action.ID,
		"action_type", action.ActionType,
		"error", err)
}

// perform dispatches on action type. Text-bearing actions pass through the
// safety screen before touching the platform.
func (e *Executor) perform(ctx context.Context, action *models.ScheduledAction) error {
	p := action.Payload

	switch action.ActionType {
	case models.ActionTypeTweet:
		if err := e.screen(ctx, action, p.Text); err != nil {
			return err
		}
		_, err := e.client.PostTweet(ctx, p.Text)
		return err

	case models.ActionTypeReply:
		if p.TargetTweetID == "" {
			return fmt.Errorf("reply action missing target tweet")
		}
		if err := e.screen(ctx, action, p.Text); err != nil {
			return err
		}
		_, err := e.client.Reply(ctx, p.Text, p.TargetTweetID)
		return err

	case models.ActionTypeLike:
		if p.TargetTweetID == "" {
			return fmt.Errorf("like action missing target tweet")
		}
		return e.client.Like(ctx, p.TargetTweetID)

	case models.ActionTypeRetweet:
		if p.TargetTweetID == "" {
			return fmt.Errorf("retweet action missing target tweet")
		}
		return e.client.Retweet(ctx, p.TargetTweetID)

	case models.ActionTypeFollow:
		if p.TargetUserID == "" {
			return fmt.Errorf("follow action missing target user")
		}
		return e.client.Follow(ctx, p.TargetUserID)

	case models.ActionTypeEngage:
		return e.performEngage(ctx, action)

	default:
		return fmt.Errorf("unknown action type: %s", action.ActionType)
	}
}

// performEngage resolves a deferred engagement decision at execution time:
// the model picks like, reply, or skip for the target tweet.
func (e *Executor) performEngage(ctx context.Context, action *models.ScheduledAction) error {
	p := action.Payload
	if p.TargetTweetID == "" {
		return fmt.Errorf("engage action missing target tweet")
	}

	profile := e.currentProfile(ctx)
	d, err := e.generator.DecideEngagement(ctx, profile, p.TargetAuthor, p.TargetText)
	if err != nil {
		return fmt.Errorf("engagement decision failed: %w", err)
	}

	switch d.Action {
	case "like":
		return e.client.Like(ctx, p.TargetTweetID)
	case "reply":
		if err := e.screen(ctx, action, d.ReplyText); err != nil {
			return err
		}
		_, err := e.client.Reply(ctx, d.ReplyText, p.TargetTweetID)
		return err
	default:
		// Declining is a successful outcome, not a failure.
		e.logger.Info("engagement skipped",
			"action_id", action.ID,
			"target_tweet_id", p.TargetTweetID,
			"reasoning", d.Reasoning)
		return nil
	}
}

// screen runs the safety check and records rejections in the audit trail.
func (e *Executor) screen(ctx context.Context, action *models.ScheduledAction, text string) error {
	if text == "" {
		return fmt.Errorf("action has no text to post")
	}

	safe, reason := e.generator.CheckSafety(ctx, text)
	if !safe {
		e.recordActivity(ctx, models.ActivityTypeSafetyRejection,
			"content rejected by safety screen", action, false, reason)
		return fmt.Errorf("content rejected by safety screen: %s", reason)
	}
	return nil
}

func (e *Executor) currentProfile(ctx context.Context) *models.PersonalityProfile {
	profile, err := e.profiles.Get(ctx)
	if err != nil {
		if !errors.Is(err, database.ErrProfileNotFound) {
			e.logger.Warn("failed to load personality profile", "error", err)
		}
		return nil
	}
	return profile
}

func (e *Executor) recordActivity(ctx context.Context, activityType models.ActivityType, description string, action *models.ScheduledAction, success bool, errMsg string) {
	entry := &models.ActivityLog{
		ActivityType: activityType,
		Description:  description,
		Success:      success,
		ErrorMessage: errMsg,
		Metadata: map[string]interface{}{
			"action_id":   action.ID,
			"action_type": string(action.ActionType),
		},
	}
	if err := e.activity.Log(ctx, entry); err != nil {
		e.logger.Error("failed to record activity", "error", err)
	}
}
