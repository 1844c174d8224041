package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/verte-zerg/subitise/internal/model"
)

const (
	// DefaultBaseURL is used when no API URL is configured.
	DefaultBaseURL = "http://127.0.0.1:8000"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 200
)

// Client talks to the results service.
type Client struct {
	baseURL string
	http    *http.Client
	errOut  io.Writer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithErrorOutput sets where swallowed failures are logged.
func WithErrorOutput(w io.Writer) Option {
	return func(c *Client) {
		c.errOut = w
	}
}

// NewClient returns a Client for baseURL, falling back to DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		errOut:  os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateSession registers a remote session and returns its id.
func (c *Client) CreateSession(ctx context.Context, childID, gameID int64) (int64, error) {
	var out sessionResponse
	if err := c.post(ctx, "/game-sessions/", sessionRequest{ChildID: childID, GameID: gameID}, &out); err != nil {
		return 0, fmt.Errorf("failed to create game session: %w", err)
	}
	return out.SessionID, nil
}

// SubmitResult attaches a result to a remote session.
func (c *Client) SubmitResult(ctx context.Context, sessionID int64, result model.GameResult) error {
	body := resultRequest{
		SessionID:        sessionID,
		Score:            result.Score,
		TimeTakenSeconds: result.TimeTakenSeconds,
		FeedbackData:     newFeedbackData(result),
	}
	if err := c.post(ctx, "/game-results/", body, nil); err != nil {
		return fmt.Errorf("failed to send game result: %w", err)
	}
	return nil
}

// Send creates a remote session and submits the result to it.
func (c *Client) Send(ctx context.Context, result model.GameResult) error {
	sessionID, err := c.CreateSession(ctx, result.ChildID, result.GameID)
	if err != nil {
		return err
	}
	return c.SubmitResult(ctx, sessionID, result)
}

// Recommendations asks the service to score free-text feedback.
func (c *Client) Recommendations(ctx context.Context, text string) (map[string]float64, error) {
	out := map[string]float64{}
	if err := c.post(ctx, "/feedback/recommendations/", text, &out); err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}
	return out, nil
}

// RecommendationsOrEmpty is Recommendations with failures logged and an
// empty mapping returned.
func (c *Client) RecommendationsOrEmpty(ctx context.Context, text string) map[string]float64 {
	out, err := c.Recommendations(ctx, text)
	if err != nil {
		c.logErrf("%v\n", err)
		return map[string]float64{}
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, msg)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) logErrf(format string, args ...any) {
	if c.errOut == nil {
		return
	}
	if _, err := fmt.Fprintf(c.errOut, format, args...); err != nil {
		// Best-effort logging to the error output.
		_ = err
	}
}
