// Package discord is the glue to the Discord collaborator: a pull-based
// REST client that collapses the account's observable state into discrete
// point-in-time snapshots for the differ.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/aurumco/ryde/pkg/logx"
)

const (
	apiBase = "https://discord.com/api/v9"

	// defaultUserAgent pins a browser UA; the user API rejects obvious
	// non-browser clients.
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/141.0.0.0 Safari/537.36"

	messageFetchLimit = 50
)

type Config struct {
	Token     string
	UserAgent string
	Timeout   time.Duration // per-request; default 20s

	// BaseURL overrides the API endpoint; empty means the real API.
	BaseURL string

	TrackedUsers  []int64
	TrackedGuilds []int64
}

type Client struct {
	cfg  Config
	http *retryablehttp.Client
	log  logx.Logger

	me *Me

	// guildNames caches id -> name from the last guild listing, used to
	// label voice notifications.
	guildNames map[string]string
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is empty")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = apiBase
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 8 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil // suppress retryablehttp's default logging

	return &Client{cfg: cfg, http: rc, log: log}, nil
}

// Login verifies the token and caches the account identity. The orchestrator
// calls this once before the first poll; failure is a startup-fatal error.
func (c *Client) Login(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.getJSON(ctx, "/users/@me", &me); err != nil {
		return nil, fmt.Errorf("discord login: %w", err)
	}
	c.me = &me
	c.log.Info("logged in", logx.String("user", me.Username), logx.String("id", me.ID))
	return &me, nil
}

// Me returns the identity cached by Login, or nil before login.
func (c *Client) Me() *Me { return c.me }

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.Token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

var errNotFound = fmt.Errorf("not found")

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
