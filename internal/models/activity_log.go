package models

import "time"

// ActivityType represents the type of activity being logged.
type ActivityType string

const (
	ActivityTypeActionExecuted  ActivityType = "action_executed"
	ActivityTypeActionFailed    ActivityType = "action_failed"
	ActivityTypeActionEnqueued  ActivityType = "action_enqueued"
	ActivityTypeMentionsCheck   ActivityType = "mentions_check"
	ActivityTypeTimelineEngage  ActivityType = "timeline_engage"
	ActivityTypeTweetGeneration ActivityType = "tweet_generation"
	ActivityTypeRetentionSweep  ActivityType = "retention_sweep"
	ActivityTypeSafetyRejection ActivityType = "safety_rejection"
	ActivityTypeQuotaExhausted  ActivityType = "quota_exhausted"
)

// ActivityLog is an append-only audit record of something the agent did or
// attempted. Entries are never mutated after insertion.
type ActivityLog struct {
	ID           string                 `json:"id"`
	CreatedAt    time.Time              `json:"created_at"`
	ActivityType ActivityType           `json:"activity_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}
