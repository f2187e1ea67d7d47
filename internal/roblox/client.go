// Package roblox implements the identity-resolver boundary against the
// public Roblox Users API. It resolves a claimed nickname to a stable
// account id and fetches the freeform profile text (description and status)
// that serves as the out-of-band verification channel.
//
// The resolver is a pure read: it performs no writes against the external
// system and holds no state beyond the HTTP client. Transient failures
// (HTTP 429, transport errors) are retried with bounded exponential backoff
// before surfacing ErrUnavailable, which callers must keep distinct from
// ErrNotFound so "couldn't check" is never misread as "account absent".
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the public Roblox Users API endpoint.
const DefaultBaseURL = "https://users.roblox.com"

const (
	maxAttempts     = 3
	initialInterval = 500 * time.Millisecond
	maxInterval     = 4 * time.Second
)

var (
	// ErrNotFound means the nickname does not resolve to any account.
	ErrNotFound = errors.New("roblox profile not found")

	// ErrUnavailable means the provider could not be reached or kept
	// rate-limiting us after bounded retries.
	ErrUnavailable = errors.New("roblox api unavailable")
)

// Profile is the resolved identity snapshot for a nickname.
type Profile struct {
	UserID      int64
	Description string
	Status      string
}

// Resolver resolves nicknames to profiles. It is implemented by *Client and
// faked in tests of the verification engine.
type Resolver interface {
	Resolve(ctx context.Context, nickname string) (*Profile, error)
}

// Client talks to the Roblox Users API. The zero value is not usable;
// construct with NewClient.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client against baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type usernameLookupRequest struct {
	Usernames          []string `json:"usernames"`
	ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
}

type usernameLookupResponse struct {
	Data []struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

type profileResponse struct {
	Description string `json:"description"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Resolve looks up the account id for nickname and fetches its profile text.
// The status endpoint may 404 for new accounts; that yields an empty status
// rather than failing the whole resolution. The caller must reject empty
// nicknames before calling.
func (c *Client) Resolve(ctx context.Context, nickname string) (*Profile, error) {
	var lookup usernameLookupResponse
	body, err := json.Marshal(usernameLookupRequest{Usernames: []string{nickname}})
	if err != nil {
		return nil, err
	}
	if err := c.do(ctx, http.MethodPost, "/v1/usernames/users", body, &lookup); err != nil {
		return nil, err
	}
	if len(lookup.Data) == 0 {
		return nil, ErrNotFound
	}
	userID := lookup.Data[0].ID

	var prof profileResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/users/%d", userID), nil, &prof); err != nil {
		return nil, err
	}

	var status statusResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/users/%d/status", userID), nil, &status); err != nil {
		// Partial data is acceptable; absence of a status must not block verification.
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		status.Status = ""
	}

	return &Profile{UserID: userID, Description: prof.Description, Status: status.Status}, nil
}

// do issues one API request with bounded retries. HTTP 429 and transport
// errors are retried; 404 maps to ErrNotFound without retrying.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval

	op := func() error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err // transport error, retryable
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return errors.New("rate limited")
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode))
		}

		return json.NewDecoder(resp.Body).Decode(out)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
