package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/socialx/agent/internal/config"
	"github.com/socialx/agent/internal/database"
	"github.com/socialx/agent/internal/generation"
	"github.com/socialx/agent/internal/models"
	"github.com/socialx/agent/internal/personality"
	"github.com/socialx/agent/internal/ratelimit"
	"github.com/socialx/agent/internal/social"
	"log/slog"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// Processing rows older than this are reported as stuck; recovery is a
	// manual operation.
	stuckThreshold = 15 * time.Minute
)

// ActionStore is the queue surface the operator API needs.
type ActionStore interface {
	Create(ctx context.Context, action *models.ScheduledAction) error
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.ScheduledAction, error)
	List(ctx context.Context, status models.ActionStatus, limit int) ([]*models.ScheduledAction, error)
	CountByStatus(ctx context.Context) (map[models.ActionStatus]int, error)
	CountStuckProcessing(ctx context.Context, olderThan time.Duration) (int, error)
}

// ActivityStore reads and appends audit entries.
type ActivityStore interface {
	Log(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, activityType models.ActivityType, limit int) ([]*models.ActivityLog, error)
}

// ProfileStore persists the learned personality profile.
type ProfileStore interface {
	Save(ctx context.Context, profile *models.PersonalityProfile) error
	Get(ctx context.Context) (*models.PersonalityProfile, error)
}

// SocialClient is the platform surface used by manual operations.
type SocialClient interface {
	PostTweet(ctx context.Context, text string) (string, error)
	GetUserTweets(ctx context.Context, maxResults int) ([]social.Tweet, error)
}

// Generator produces and screens content for manual posts.
type Generator interface {
	GenerateTweet(ctx context.Context, profile *models.PersonalityProfile, recentPosts []string) (string, error)
	CheckSafety(ctx context.Context, text string) (bool, string)
}

type Handler struct {
	agentCfg  config.AgentConfig
	actions   ActionStore
	activity  ActivityStore
	profiles  ProfileStore
	client    SocialClient
	generator Generator
	analyzer  *personality.Analyzer
	learner   *personality.PatternLearner
	tracker   *ratelimit.Tracker
	db        *sql.DB
	logger    *slog.Logger
	startTime time.Time
}

func NewHandler(
	agentCfg config.AgentConfig,
	actions ActionStore,
	activity ActivityStore,
	profiles ProfileStore,
	client SocialClient,
	generator Generator,
	analyzer *personality.Analyzer,
	learner *personality.PatternLearner,
	tracker *ratelimit.Tracker,
	db *sql.DB,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		agentCfg:  agentCfg,
		actions:   actions,
		activity:  activity,
		profiles:  profiles,
		client:    client,
		generator: generator,
		analyzer:  analyzer,
		learner:   learner,
		tracker:   tracker,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}
}

// AgentStatusHandler handles GET /api/agent/status
func (h *Handler) AgentStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, err := h.actions.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to count actions", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	stuck, err := h.actions.CountStuckProcessing(r.Context(), stuckThreshold)
	if err != nil {
		h.logger.Error("failed to count stuck actions", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := map[string]interface{}{
		"running":        true,
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"behaviors": map[string]bool{
			"auto_tweet":  h.agentCfg.AutoTweet,
			"auto_reply":  h.agentCfg.AutoReply,
			"auto_engage": h.agentCfg.AutoEngage,
		},
		"queue":            counts,
		"stuck_processing": stuck,
		"rate_limits":      h.tracker.Status(),
	}
	if h.db != nil {
		status["database"] = database.Stats(h.db)
	}

	respondJSON(w, h.logger, http.StatusOK, status)
}

type createActionRequest struct {
	ActionType   models.ActionType    `json:"action_type"`
	ScheduledFor *time.Time           `json:"scheduled_for,omitempty"`
	Payload      models.ActionPayload `json:"payload"`
}

// CreateActionHandler handles POST /api/actions
func (h *Handler) CreateActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !models.ValidActionType(req.ActionType) {
		http.Error(w, fmt.Sprintf("unknown action type: %s", req.ActionType), http.StatusBadRequest)
		return
	}
	if err := validatePayload(req.ActionType, req.Payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	action := &models.ScheduledAction{
		ActionType: req.ActionType,
		Payload:    req.Payload,
	}
	if req.ScheduledFor != nil {
		action.ScheduledFor = *req.ScheduledFor
	}

	if err := h.actions.Create(r.Context(), action); err != nil {
		h.logger.Error("failed to enqueue action", "action_type", req.ActionType, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("action enqueued via API",
		"action_id", action.ID,
		"action_type", action.ActionType,
		"scheduled_for", action.ScheduledFor)

	h.recordActivity(r.Context(), models.ActivityTypeActionEnqueued,
		fmt.Sprintf("operator enqueued %s action", action.ActionType),
		map[string]interface{}{"action_id": action.ID})

	respondJSON(w, h.logger, http.StatusCreated, action)
}

// ListActionsHandler handles GET /api/actions
func (h *Handler) ListActionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := models.ActionStatus(r.URL.Query().Get("status"))
	limit := parseLimit(r.URL.Query().Get("limit"))

	actions, err := h.actions.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("failed to list actions", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"actions": actions,
		"count":   len(actions),
	})
}

// CancelActionHandler handles DELETE /api/actions/:id
func (h *Handler) CancelActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/actions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Action ID required", http.StatusBadRequest)
		return
	}

	err := h.actions.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrActionNotFound):
		http.Error(w, "Action not found", http.StatusNotFound)
		return
	case errors.Is(err, database.ErrActionNotCancellable):
		http.Error(w, "Action is no longer pending", http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("failed to cancel action", "action_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("action cancelled via API", "action_id", id)
	respondJSON(w, h.logger, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(models.ActionStatusCancelled),
	})
}

type manualTweetRequest struct {
	Text string `json:"text"`
}

// ManualTweetHandler handles POST /api/tweet. The post goes through the same
// safety screen and quota gate as autonomous tweets.
func (h *Handler) ManualTweetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req manualTweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		profile, err := h.profiles.Get(r.Context())
		if err != nil && !errors.Is(err, database.ErrProfileNotFound) {
			h.logger.Error("failed to load profile", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		text, err = h.generator.GenerateTweet(r.Context(), profile, nil)
		if err != nil {
			if errors.Is(err, generation.ErrSkipped) {
				http.Error(w, "Generation declined to produce a tweet", http.StatusUnprocessableEntity)
				return
			}
			h.logger.Error("failed to generate tweet", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	if safe, reason := h.generator.CheckSafety(r.Context(), text); !safe {
		h.recordActivity(r.Context(), models.ActivityTypeSafetyRejection,
			"manual tweet rejected by safety screen",
			map[string]interface{}{"reason": reason})
		http.Error(w, fmt.Sprintf("Content rejected: %s", reason), http.StatusUnprocessableEntity)
		return
	}

	tweetID, err := h.client.PostTweet(r.Context(), text)
	if err != nil {
		var quotaErr *social.QuotaExceededError
		if errors.As(err, &quotaErr) {
			w.Header().Set("Retry-After", strconv.Itoa(int(quotaErr.RetryAfter.Seconds())))
			http.Error(w, quotaErr.Error(), http.StatusTooManyRequests)
			return
		}
		h.logger.Error("failed to post tweet", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.recordActivity(r.Context(), models.ActivityTypeActionExecuted,
		"operator posted a tweet",
		map[string]interface{}{"tweet_id": tweetID})

	respondJSON(w, h.logger, http.StatusCreated, map[string]string{
		"tweet_id": tweetID,
		"text":     text,
	})
}

// ListActivityHandler handles GET /api/activity
func (h *Handler) ListActivityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	activityType := models.ActivityType(r.URL.Query().Get("type"))
	limit := parseLimit(r.URL.Query().Get("limit"))

	entries, err := h.activity.List(r.Context(), activityType, limit)
	if err != nil {
		h.logger.Error("failed to list activity", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"activities": entries,
		"count":      len(entries),
	})
}

type learnRequest struct {
	Posts []models.HistoricalPost `json:"posts"`
}

// LearnPersonalityHandler handles POST /api/personality/learn. Posts may be
// supplied in the body; when absent they are fetched from the platform.
func (h *Handler) LearnPersonalityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	posts := req.Posts
	if len(posts) == 0 {
		tweets, err := h.client.GetUserTweets(r.Context(), 100)
		if err != nil {
			h.logger.Error("failed to fetch historical tweets", "error", err)
			http.Error(w, "Failed to fetch historical posts", http.StatusBadGateway)
			return
		}
		for _, t := range tweets {
			posts = append(posts, models.HistoricalPost{Text: t.Text, CreatedAt: t.CreatedAt})
		}
	}
	if len(posts) == 0 {
		http.Error(w, "No historical posts available to learn from", http.StatusBadRequest)
		return
	}

	profile := personality.BuildProfile(posts, h.analyzer, h.learner)
	if err := h.profiles.Save(r.Context(), profile); err != nil {
		h.logger.Error("failed to save profile", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("personality profile updated", "sample_count", profile.SampleCount)
	respondJSON(w, h.logger, http.StatusOK, profile)
}

// GetPersonalityHandler handles GET /api/personality
func (h *Handler) GetPersonalityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profile, err := h.profiles.Get(r.Context())
	if errors.Is(err, database.ErrProfileNotFound) {
		http.Error(w, "No profile learned yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load profile", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, profile)
}

func (h *Handler) recordActivity(ctx context.Context, activityType models.ActivityType, description string, metadata map[string]interface{}) {
	entry := &models.ActivityLog{
		ActivityType: activityType,
		Description:  description,
		Metadata:     metadata,
		Success:      true,
	}
	if err := h.activity.Log(ctx, entry); err != nil {
		h.logger.Error("failed to record activity", "error", err)
	}
}

func validatePayload(actionType models.ActionType, payload models.ActionPayload) error {
	switch actionType {
	case models.ActionTypeTweet:
		if strings.TrimSpace(payload.Text) == "" {
			return fmt.Errorf("tweet action requires text")
		}
	case models.ActionTypeReply:
		if strings.TrimSpace(payload.Text) == "" || payload.TargetTweetID == "" {
			return fmt.Errorf("reply action requires text and target_tweet_id")
		}
	case models.ActionTypeLike, models.ActionTypeRetweet, models.ActionTypeEngage:
		if payload.TargetTweetID == "" {
			return fmt.Errorf("%s action requires target_tweet_id", actionType)
		}
	case models.ActionTypeFollow:
		if payload.TargetUserID == "" {
			return fmt.Errorf("follow action requires target_user_id")
		}
	}
	return nil
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
