package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/techdigest/internal/logger"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	DefaultTimeout = 20 * time.Second

	maxErrorBody = 64 * 1024
)

// ErrMissingCredentials is returned by New when the bot token or chat id is empty.
var ErrMissingCredentials = errors.New("telegram: bot token and chat id are required")

// APIError is a rejected sendMessage call.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram API error: status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram API error: status %d", e.StatusCode)
}

type Config struct {
	Token   string
	ChatID  string
	BaseURL string
	Timeout time.Duration
}

// Client posts messages to one Telegram chat.
type Client struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

// New checks the credentials and returns a client. No request is made.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.OrDefault(log),
	}, nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage sends text as a plain message with link previews disabled.
// It makes exactly one attempt.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Token)

	form := url.Values{}
	form.Set("chat_id", c.cfg.ChatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		// url.Error carries the full URL, token included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram: HTTP request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		c.log.Debug("failed to read Telegram response body", "status", resp.StatusCode, "error", readErr)
	}

	var parsed apiResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Description: parsed.Description}
	}
	if decodeErr == nil && !parsed.OK {
		return &APIError{StatusCode: resp.StatusCode, Description: parsed.Description}
	}

	c.log.Info("message sent to Telegram", "chars", len([]rune(text)))
	return nil
}
