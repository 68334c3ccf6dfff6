// Package linear is a read-only client for the Linear GraphQL API, plus the
// cycle bucketing used by the dashboard.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/emilianohg/cyclelog/internal/config"
	"github.com/emilianohg/cyclelog/internal/models"
)

var (
	// ErrMissingCredential is returned by every query when no API token is
	// configured.
	ErrMissingCredential = errors.New("no Linear API token found")

	// ErrFetch is returned for any other failure.
	ErrFetch = errors.New("failed to fetch from Linear, check your API token")
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
)

type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *slog.Logger
	backOff  func() backoff.BackOff
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBackOff replaces the retry schedule for transient failures.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.backOff = fn }
}

// NewClient builds a client sending token as the raw Authorization header.
// An empty token is accepted; queries then fail with ErrMissingCredential.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		endpoint: config.DefaultLinearEndpoint,
		token:    token,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   slog.New(slog.DiscardHandler),
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return backoff.WithMaxRetries(b, maxRetries)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig resolves the token and endpoint from cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	return NewClient(cfg.Token(), append([]Option{WithEndpoint(cfg.LinearEndpoint)}, opts...)...)
}

func (c *Client) HasToken() bool {
	return c.token != ""
}

// FetchIssues returns every issue whose workflow state is not "Canceled".
func (c *Client) FetchIssues(ctx context.Context) ([]models.Issue, error) {
	var data struct {
		Issues nodes[models.Issue] `json:"issues"`
	}
	if err := c.query(ctx, "issues", issuesQuery, &data); err != nil {
		return nil, err
	}
	return data.Issues.Nodes, nil
}

// FetchCycles returns the first 20 cycles of the workspace.
func (c *Client) FetchCycles(ctx context.Context) ([]models.Cycle, error) {
	var data struct {
		Cycles nodes[models.Cycle] `json:"cycles"`
	}
	if err := c.query(ctx, "cycles", cyclesQuery, &data); err != nil {
		return nil, err
	}
	return data.Cycles.Nodes, nil
}

// FetchUsers returns the active users of the workspace.
func (c *Client) FetchUsers(ctx context.Context) ([]models.User, error) {
	var data struct {
		Users nodes[models.User] `json:"users"`
	}
	if err := c.query(ctx, "users", usersQuery, &data); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(data.Users.Nodes))
	for _, u := range data.Users.Nodes {
		if u.Active {
			users = append(users, u)
		}
	}
	return users, nil
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// errRetry marks a response worth another attempt.
var errRetry = errors.New("transient Linear failure")

func (c *Client) query(ctx context.Context, name, query string, out any) error {
	if c.token == "" {
		return ErrMissingCredential
	}

	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return fmt.Errorf("%w: encode %s query: %w", ErrFetch, name, err)
	}

	var payload []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", errRetry, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))))
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("linear request failed, retrying", "query", name, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(c.backOff(), ctx), notify); err != nil {
		c.logger.Error("linear request failed", "query", name, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrFetch, name, err)
	}

	var resp graphQLResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrFetch, name, err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		c.logger.Error("linear query returned errors", "query", name, "errors", msgs)
		return fmt.Errorf("%w: %s: %s", ErrFetch, name, strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %w", ErrFetch, name, err)
	}

	c.logger.Debug("linear query ok", "query", name)
	return nil
}
