// Package presenceclient embeds the client side of the presence system:
// a thin API client, the per-session heartbeat emitter, and the watcher
// that drives an "agents online" widget. It is the single owned
// background task per session the server design expects; callers should
// run exactly one Emitter per signed-in session.
package presenceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Agent mirrors the rows served by GET /api/v1/agents/online.
type Agent struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Whatsapp  string    `json:"whatsapp"`
	Email     string    `json:"email"`
	LastSeen  time.Time `json:"last_seen"`
}

// Client talks to the presence endpoints. Token may be empty for
// read-only use; heartbeat and offline are then server-side no-ops.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	OK    bool    `json:"ok"`
	Error string  `json:"error"`
	Rows  []Agent `json:"rows"`
}

// Heartbeat refreshes this session's presence row.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.post(ctx, "/api/v1/presence/heartbeat")
}

// Offline clears this session's presence row. Safe to call repeatedly.
func (c *Client) Offline(ctx context.Context) error {
	return c.post(ctx, "/api/v1/presence/offline")
}

// OnlineAgents fetches the current online set. A nil error with an empty
// slice is a confirmed "nobody online"; an error means unknown, and the
// caller must not render it as an empty result.
func (c *Client) OnlineAgents(ctx context.Context) ([]Agent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/agents/online", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if !env.OK {
		if env.Error == "" {
			env.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("online agents query: %s", env.Error)
	}
	if env.Rows == nil {
		env.Rows = []Agent{}
	}
	return env.Rows, nil
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	if !env.OK {
		if env.Error == "" {
			env.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("presence write: %s", env.Error)
	}
	return nil
}
