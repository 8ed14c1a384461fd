// Package slack is a thin client over the handful of Web API methods this
// system consumes. Platform failures ("ok": false envelopes) are converted to
// errors here so callers only ever deal with (value, error) pairs; no retries
// happen at this layer.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/SamPetering/slack-sales-notifier/pkg/logx"
)

const defaultBaseURL = "https://slack.com/api"

type Config struct {
	Token string
	// BaseURL overrides the API root (tests point it at httptest servers).
	BaseURL string
	// RatePerSec caps outbound API calls; Slack tier limits are strict.
	RatePerSec int
	Timeout    time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

// APIError is a Slack-level failure: HTTP succeeded but the envelope said no.
type APIError struct {
	Method string
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Reason)
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("slack token is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}, nil
}

type listResponse struct {
	envelope
	Channels []Channel `json:"channels"`
	Metadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// ListChannels returns all public channels visible to the token, following
// pagination cursors until exhausted.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var all []Channel
	cursor := ""
	for {
		q := url.Values{}
		q.Set("types", "public_channel")
		q.Set("exclude_archived", "true")
		q.Set("limit", "200")
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var resp listResponse
		if err := c.call(ctx, http.MethodGet, "conversations.list", q, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Channels...)
		cursor = resp.Metadata.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

type createResponse struct {
	envelope
	Channel Channel `json:"channel"`
}

// CreateChannel creates a public channel with the given name.
func (c *Client) CreateChannel(ctx context.Context, name string) (Channel, error) {
	if strings.TrimSpace(name) == "" {
		return Channel{}, errors.New("channel name is empty")
	}
	var resp createResponse
	body := map[string]any{"name": name}
	if err := c.call(ctx, http.MethodPost, "conversations.create", nil, body, &resp); err != nil {
		return Channel{}, err
	}
	return resp.Channel, nil
}

type historyResponse struct {
	envelope
	Messages []Message `json:"messages"`
}

// GetChannelMessages fetches the most recent messages (newest first) from a
// channel by ID.
func (c *Client) GetChannelMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if channelID == "" {
		return nil, errors.New("channel id is empty")
	}
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("channel", channelID)
	q.Set("limit", strconv.Itoa(limit))
	var resp historyResponse
	if err := c.call(ctx, http.MethodGet, "conversations.history", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

type postResponse struct {
	envelope
	TS string `json:"ts"`
}

// SendMessage posts plain text to a channel. Channel may be a name or an ID;
// chat.postMessage accepts both.
func (c *Client) SendMessage(ctx context.Context, channel, text string) error {
	if channel == "" {
		return errors.New("channel is empty")
	}
	var resp postResponse
	body := map[string]any{"channel": channel, "text": text}
	return c.call(ctx, http.MethodPost, "chat.postMessage", nil, body, &resp)
}

// ---- transport plumbing ----

type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (e envelope) ok() bool       { return e.OK }
func (e envelope) reason() string { return e.Error }

type apiEnvelope interface {
	ok() bool
	reason() string
}

func (c *Client) call(ctx context.Context, method, apiMethod string, q url.Values, body any, out apiEnvelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.cfg.BaseURL + "/" + apiMethod
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = strings.NewReader(string(b))
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", apiMethod, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: unexpected status %d", apiMethod, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack %s: decode: %w", apiMethod, err)
	}
	c.log.Trace("slack api call",
		logx.String("method", apiMethod),
		logx.Duration("took", time.Since(started)),
		logx.Bool("ok", out.ok()),
	)
	if !out.ok() {
		reason := out.reason()
		if reason == "" {
			reason = "unknown_error"
		}
		return &APIError{Method: apiMethod, Reason: reason}
	}
	return nil
}
