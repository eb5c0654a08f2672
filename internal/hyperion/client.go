// Package hyperion is a read-only client for a Hyperion chain-history
// API. It decodes the loose get_actions payload into a strict
// intermediate representation at this boundary; nothing untyped leaks
// out of the package.
package hyperion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 5 * time.Second
)

// Client queries a Hyperion history endpoint over HTTP.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a Hyperion client for the given base URL,
// e.g. "https://eos.hyperion.eosrio.io/v2".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTransferActions fetches the most recent transfer actions involving
// account, newest first, up to limit rows. Individual actions that fail
// shape checks are dropped silently; a transport or decode failure of
// the whole response is returned as an error.
func (c *Client) GetTransferActions(ctx context.Context, account string, limit int) ([]Action, error) {
	q := url.Values{}
	q.Set("account", account)
	q.Set("act_name", "transfer")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", "0")
	q.Set("sort", "desc")

	endpoint := fmt.Sprintf("%s/history/get_actions?%s", c.baseURL, q.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp actionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal get_actions response: %w", err)
	}

	actions := make([]Action, 0, len(resp.Actions))
	for _, raw := range resp.Actions {
		if a, ok := decodeAction(raw); ok {
			actions = append(actions, a)
		}
	}
	return actions, nil
}

// get performs an HTTP GET with retries and exponential backoff.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(body))
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// decodeAction converts one loose action entry into the strict
// representation. Returns false for anything that is not a
// fully-shaped transfer action.
func decodeAction(raw json.RawMessage) (Action, bool) {
	var entry rawAction
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Action{}, false
	}

	if entry.Act == nil || entry.Act.Name != "transfer" || entry.Act.Account == "" {
		return Action{}, false
	}

	var data transferData
	if err := json.Unmarshal(entry.Act.Data, &data); err != nil {
		return Action{}, false
	}
	if data.To == "" {
		return Action{}, false
	}

	trxID := entry.TrxID
	if trxID == "" && entry.ActionTrace != nil {
		trxID = entry.ActionTrace.TrxID
	}
	if trxID == "" {
		return Action{}, false
	}

	// An action without a parseable timestamp cannot be ordered within
	// the cycle, so it fails the shape check like any other field.
	ts := entry.Timestamp
	if ts == "" {
		ts = entry.BlockTime
	}
	blockTime, ok := parseTimestamp(ts)
	if !ok {
		return Action{}, false
	}

	return Action{
		Contract:  entry.Act.Account,
		Name:      entry.Act.Name,
		From:      data.From,
		To:        data.To,
		Quantity:  data.Quantity,
		Memo:      data.Memo,
		TrxID:     trxID,
		BlockTime: blockTime,
	}, true
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
