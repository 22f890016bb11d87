// Package remote is the HTTP client for the backend's row-level sync API.
//
// The API is two idempotent operations keyed by record id: upsert and
// delete. Replaying an already-applied upsert or delete must not duplicate
// or corrupt data, which is what makes at-least-once queue draining safe.
//
// Failures are classified into the typed taxonomy in internal/common at the
// call site, so retry decisions never depend on matching message text.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/stepwise-app/stepwise/internal/common"
	"github.com/stepwise-app/stepwise/internal/logging"
)

// API is the remote boundary consumed by the sync engine.
type API interface {
	// Upsert writes one row and returns the remote identifier, newly
	// assigned on first insert, stable on replay.
	Upsert(ctx context.Context, table, recordID string, row map[string]any) (string, error)

	// Delete removes one row by record id. Deleting an absent row is a
	// success (delete-if-exists).
	Delete(ctx context.Context, table, recordID string) error

	// Ping probes reachability of the backend.
	Ping(ctx context.Context) error
}

// Client implements API over HTTP JSON.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
	log     logging.Logger
}

// NewClient builds a Client for the given base URL. token is called per
// request so a refreshed session token is picked up automatically.
func NewClient(baseURL string, token func() string, log logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		token:   token,
		log:     log,
	}
}

type upsertResponse struct {
	ID string `json:"id"`
}

func (c *Client) Upsert(ctx context.Context, table, recordID string, row map[string]any) (string, error) {
	body, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, c.rowURL(table, recordID), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", fmt.Errorf("upsert %s/%s: %w", table, recordID, err)
	}

	var out upsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upsert response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("upsert %s/%s: response has no id", table, recordID)
	}
	return out.ID, nil
}

func (c *Client) Delete(ctx context.Context, table, recordID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.rowURL(table, recordID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Absent row: the delete already happened, possibly on a previous
	// attempt whose response was lost.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if err := classifyStatus(resp); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, recordID, err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return classifyStatus(resp)
}

func (c *Client) rowURL(table, recordID string) string {
	return c.baseURL + "/api/v1/" + url.PathEscape(table) + "/" + url.PathEscape(recordID)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t := c.token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	c.log.Debug(ctx, "remote call", "method", method, "url", u, "status", resp.StatusCode)
	return resp, nil
}

// classifyTransport maps transport-level failures. Timeouts get their own
// sentinel, cancellation passes through untouched, and everything else that
// never reached the server is transient.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", common.ErrTransient, err)
}

// classifyStatus maps response codes onto the error taxonomy. 2xx is nil.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: http %d", common.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: http %d", common.ErrConflict, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", common.ErrValidation, readErrorBody(resp))
	case resp.StatusCode == http.StatusRequestTimeout:
		return fmt.Errorf("%w: http %d", common.ErrTimeout, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Remote busy or failing: transient by definition.
		return fmt.Errorf("%w: http %d", common.ErrTransient, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}
}

func readErrorBody(resp *http.Response) string {
	b, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(b) == 0 {
		return resp.Status
	}
	return string(b)
}
