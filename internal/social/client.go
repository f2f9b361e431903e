// Package social implements the Twitter API v2 client. Every call is gated
// by the rate tracker: exhausted endpoints fail fast with a
// QuotaExceededError instead of spending a doomed request, and the quota
// headers on every response feed the tracker fresh state.
package social

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/socialx/agent/internal/config"
	"github.com/socialx/agent/internal/ratelimit"
)

const defaultBaseURL = "https://api.twitter.com/2"

// Endpoint keys used for rate tracking. Each maps to a distinct platform
// quota window.
const (
	EndpointTweet    = "tweet"
	EndpointReply    = "reply"
	EndpointLike     = "like"
	EndpointRetweet  = "retweet"
	EndpointFollow   = "follow"
	EndpointMentions = "mentions"
	EndpointTimeline = "timeline"
)

// Tweet is a post fetched from the platform.
type Tweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Client handles Twitter API v2 interactions with OAuth 1.0a signing.
type Client struct {
	cfg        config.TwitterConfig
	tracker    *ratelimit.Tracker
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient creates a new Twitter API client backed by the given tracker.
func NewClient(cfg config.TwitterConfig, tracker *ratelimit.Tracker, logger *slog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		tracker: tracker,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: defaultBaseURL,
	}
}

type tweetRequest struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"errors,omitempty"`
}

// PostTweet posts a standalone tweet and returns its ID.
func (c *Client) PostTweet(ctx context.Context, text string) (string, error) {
	return c.createTweet(ctx, EndpointTweet, tweetRequest{Text: text})
}

// Reply posts a reply to an existing tweet and returns the reply's ID.
func (c *Client) Reply(ctx context.Context, text, inReplyToTweetID string) (string, error) {
	req := tweetRequest{Text: text}
	req.Reply = &struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	}{InReplyToTweetID: inReplyToTweetID}
	return c.createTweet(ctx, EndpointReply, req)
}

func (c *Client) createTweet(ctx context.Context, endpoint string, tweetReq tweetRequest) (string, error) {
	body, resp, err := c.do(ctx, endpoint, "POST", c.baseURL+"/tweets", tweetReq)
	if err != nil {
		return "", err
	}

	var parsed tweetResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse tweet response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		if len(parsed.Errors) > 0 {
			return "", fmt.Errorf("twitter API error: %s", parsed.Errors[0].Message)
		}
		return "", fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("tweet posted",
		"endpoint", endpoint,
		"tweet_id", parsed.Data.ID,
		"text_length", len(tweetReq.Text))

	return parsed.Data.ID, nil
}

// Like likes a tweet on behalf of the configured user.
func (c *Client) Like(ctx context.Context, tweetID string) error {
	apiURL := fmt.Sprintf("%s/users/%s/likes", c.baseURL, c.cfg.UserID)
	return c.simpleAction(ctx, EndpointLike, apiURL, map[string]string{"tweet_id": tweetID})
}

// Retweet retweets a tweet on behalf of the configured user.
func (c *Client) Retweet(ctx context.Context, tweetID string) error {
	apiURL := fmt.Sprintf("%s/users/%s/retweets", c.baseURL, c.cfg.UserID)
	return c.simpleAction(ctx, EndpointRetweet, apiURL, map[string]string{"tweet_id": tweetID})
}

// Follow follows a user on behalf of the configured user.
func (c *Client) Follow(ctx context.Context, targetUserID string) error {
	apiURL := fmt.Sprintf("%s/users/%s/following", c.baseURL, c.cfg.UserID)
	return c.simpleAction(ctx, EndpointFollow, apiURL, map[string]string{"target_user_id": targetUserID})
}

func (c *Client) simpleAction(ctx context.Context, endpoint, apiURL string, payload map[string]string) error {
	body, resp, err := c.do(ctx, endpoint, "POST", apiURL, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("action executed", "endpoint", endpoint)
	return nil
}

type timelineResponse struct {
	Data     []timelineTweet `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

type timelineTweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GetMentions fetches recent mentions of the configured user. sinceID, when
// non-empty, restricts results to tweets newer than that ID.
func (c *Client) GetMentions(ctx context.Context, sinceID string) ([]Tweet, error) {
	apiURL := fmt.Sprintf("%s/users/%s/mentions?tweet.fields=author_id,created_at&expansions=author_id", c.baseURL, c.cfg.UserID)
	if sinceID != "" {
		apiURL += "&since_id=" + url.QueryEscape(sinceID)
	}
	return c.fetchTweets(ctx, EndpointMentions, apiURL)
}

// GetTimeline fetches the configured user's reverse-chronological home
// timeline.
func (c *Client) GetTimeline(ctx context.Context) ([]Tweet, error) {
	apiURL := fmt.Sprintf("%s/users/%s/timelines/reverse_chronological?tweet.fields=author_id,created_at&expansions=author_id", c.baseURL, c.cfg.UserID)
	return c.fetchTweets(ctx, EndpointTimeline, apiURL)
}

// GetUserTweets fetches recent tweets authored by the configured user, used
// as input to personality learning.
func (c *Client) GetUserTweets(ctx context.Context, maxResults int) ([]Tweet, error) {
	apiURL := fmt.Sprintf("%s/users/%s/tweets?max_results=%d&tweet.fields=created_at", c.baseURL, c.cfg.UserID, maxResults)
	return c.fetchTweets(ctx, EndpointTimeline, apiURL)
}

func (c *Client) fetchTweets(ctx context.Context, endpoint, apiURL string) ([]Tweet, error) {
	body, resp, err := c.do(ctx, endpoint, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed timelineResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse timeline response: %w", err)
	}

	usernames := make(map[string]string, len(parsed.Includes.Users))
	for _, u := range parsed.Includes.Users {
		usernames[u.ID] = u.Username
	}

	tweets := make([]Tweet, 0, len(parsed.Data))
	for _, t := range parsed.Data {
		tweets = append(tweets, Tweet{
			ID:             t.ID,
			Text:           t.Text,
			AuthorID:       t.AuthorID,
			AuthorUsername: usernames[t.AuthorID],
			CreatedAt:      t.CreatedAt,
		})
	}
	return tweets, nil
}

// do performs a quota-gated request. It consults the tracker before sending
// and records the quota headers from whatever response comes back.
func (c *Client) do(ctx context.Context, endpoint, method, apiURL string, payload interface{}) ([]byte, *http.Response, error) {
	if !c.tracker.CanCall(endpoint) {
		return nil, nil, &QuotaExceededError{
			Endpoint:   endpoint,
			RetryAfter: c.tracker.TimeUntilReset(endpoint),
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	authHeader, err := c.oauthHeader(method, apiURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate OAuth header: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request to %s endpoint failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.recordRateHeaders(endpoint, resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := c.tracker.TimeUntilReset(endpoint)
		c.logger.Warn("platform rejected call with 429",
			"endpoint", endpoint,
			"retry_after", retryAfter)
		return nil, nil, &QuotaExceededError{Endpoint: endpoint, RetryAfter: retryAfter}
	}

	return body, resp, nil
}

// recordRateHeaders feeds the tracker from the x-rate-limit response
// headers. Responses without the full header set are ignored.
func (c *Client) recordRateHeaders(endpoint string, resp *http.Response) {
	limitStr := resp.Header.Get("x-rate-limit-limit")
	remainingStr := resp.Header.Get("x-rate-limit-remaining")
	resetStr := resp.Header.Get("x-rate-limit-reset")
	if limitStr == "" || remainingStr == "" || resetStr == "" {
		return
	}

	limit, err1 := strconv.Atoi(limitStr)
	remaining, err2 := strconv.Atoi(remainingStr)
	resetUnix, err3 := strconv.ParseInt(resetStr, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		c.logger.Warn("malformed rate limit headers", "endpoint", endpoint)
		return
	}

	c.tracker.RecordResponse(endpoint, limit, remaining, time.Unix(resetUnix, 0))

	if remaining == 0 {
		c.logger.Warn("endpoint quota exhausted",
			"endpoint", endpoint,
			"reset_at", time.Unix(resetUnix, 0))
	}
}

// ValidateCredentials checks the configured credentials against the
// platform.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/users/me", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.BearerToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to validate credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("invalid credentials (status %d): %s", resp.StatusCode, string(body))
	}

	c.logger.Info("twitter credentials validated")
	return nil
}

// oauthHeader builds an OAuth 1.0a authorization header for the request.
func (c *Client) oauthHeader(method, apiURL string) (string, error) {
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonceStr := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base64.StdEncoding.EncodeToString(nonce))

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.cfg.APIKey,
		"oauth_nonce":            nonceStr,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_token":            c.cfg.AccessToken,
		"oauth_version":          "1.0",
	}

	// Query parameters participate in the signature base string.
	allParams := make(map[string]string, len(oauthParams))
	for k, v := range oauthParams {
		allParams[k] = v
	}
	for k, vs := range parsed.Query() {
		if len(vs) > 0 {
			allParams[k] = vs[0]
		}
	}

	paramPairs := make([]string, 0, len(allParams))
	for k, v := range allParams {
		paramPairs = append(paramPairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(paramPairs)
	paramString := strings.Join(paramPairs, "&")

	baseURL := parsed.Scheme + "://" + parsed.Host + parsed.Path
	signatureBase := method + "&" + url.QueryEscape(baseURL) + "&" + url.QueryEscape(paramString)
	signingKey := url.QueryEscape(c.cfg.APISecret) + "&" + url.QueryEscape(c.cfg.AccessTokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(signatureBase))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authPairs := make([]string, 0, len(oauthParams))
	for k, v := range oauthParams {
		authPairs = append(authPairs, url.QueryEscape(k)+"=\""+url.QueryEscape(v)+"\"")
	}
	sort.Strings(authPairs)

	return "OAuth " + strings.Join(authPairs, ", "), nil
}
