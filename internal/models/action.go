package models

import (
	"encoding/json"
	"time"
)

// ActionType identifies the kind of autonomous behavior an action performs.
type ActionType string

const (
	ActionTypeTweet   ActionType = "tweet"
	ActionTypeReply   ActionType = "reply"
	ActionTypeLike    ActionType = "like"
	ActionTypeRetweet ActionType = "retweet"
	ActionTypeFollow  ActionType = "follow"
	ActionTypeEngage  ActionType = "engage"
)

// ValidActionType reports whether t is a member of the closed action enum.
func ValidActionType(t ActionType) bool {
	switch t {
	case ActionTypeTweet, ActionTypeReply, ActionTypeLike,
		ActionTypeRetweet, ActionTypeFollow, ActionTypeEngage:
		return true
	}
	return false
}

// ActionStatus is the lifecycle state of a scheduled action.
//
// Transitions: pending -> processing -> {completed | failed}, and
// pending -> cancelled (external cancellation only). Terminal states
// are never left.
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusProcessing ActionStatus = "processing"
	ActionStatusCompleted  ActionStatus = "completed"
	ActionStatusFailed     ActionStatus = "failed"
	ActionStatusCancelled  ActionStatus = "cancelled"
)

// Terminal reports whether s is a state from which no transition occurs.
func (s ActionStatus) Terminal() bool {
	return s == ActionStatusCompleted || s == ActionStatusFailed || s == ActionStatusCancelled
}

// ActionPayload carries the type-specific inputs for an action. Only the
// fields relevant to the action type are set; the executor interprets them.
type ActionPayload struct {
	// Text is the content to post (tweet, reply).
	Text string `json:"text,omitempty"`
	// TargetTweetID is the tweet being replied to, liked, retweeted, or
	// evaluated for engagement.
	TargetTweetID string `json:"target_tweet_id,omitempty"`
	// TargetUserID is the account to follow.
	TargetUserID string `json:"target_user_id,omitempty"`
	// TargetText is the target tweet's text, kept so the engage executor
	// can build a prompt without refetching.
	TargetText string `json:"target_text,omitempty"`
	// TargetAuthor is the target tweet's author handle, for reply context.
	TargetAuthor string `json:"target_author,omitempty"`
}

// ScheduledAction is a queued autonomous behavior with its execution state.
type ScheduledAction struct {
	ID           string          `json:"id"`
	ActionType   ActionType      `json:"action_type"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	Payload      ActionPayload   `json:"payload"`
	Status       ActionStatus    `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ExecutedAt   *time.Time      `json:"executed_at,omitempty"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	RawPayload   json.RawMessage `json:"-"`
}

// Due reports whether the action is eligible to run at the given time.
func (a *ScheduledAction) Due(now time.Time) bool {
	return a.Status == ActionStatusPending && !a.ScheduledFor.After(now)
}
