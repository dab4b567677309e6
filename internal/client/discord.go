package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/LeventeLantos/turn-relay/internal/model"
	"github.com/LeventeLantos/turn-relay/internal/render"
)

const DefaultAPIBase = "https://discord.com/api/v10"

// Channel is a resolved delivery target.
type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// DiscordClient talks to the Discord REST API with a bot token.
type DiscordClient struct {
	base   string
	token  string
	client *http.Client
}

func NewDiscordClient(base, token string) *DiscordClient {
	if base == "" {
		base = DefaultAPIBase
	}
	return &DiscordClient{
		base:  base,
		token: token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ResolveDestination looks up the channel of dest. A channel that does not
// exist (or the bot cannot see) resolves to nil without error.
func (c *DiscordClient) ResolveDestination(ctx context.Context, dest model.Destination) (*Channel, error) {
	if dest.ChannelID == "" {
		return nil, nil
	}

	resp, body, err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(dest.ChannelID), nil)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("resolve channel: unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var ch Channel
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if ch.ID == "" {
		ch.ID = dest.ChannelID
	}
	return &ch, nil
}

// Deliver posts msg to ch and returns the platform message id.
func (c *DiscordClient) Deliver(ctx context.Context, ch *Channel, msg render.Message) (string, error) {
	if ch == nil || ch.ID == "" {
		return "", errors.New("no channel")
	}

	reqBody, err := json.Marshal(toCreateMessage(msg))
	if err != nil {
		return "", err
	}

	resp, body, err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(ch.ID)+"/messages", reqBody)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if created.ID == "" {
		return "", fmt.Errorf("missing id in response body=%q", string(body))
	}
	return created.ID, nil
}

func (c *DiscordClient) do(ctx context.Context, method, path string, payload []byte) (*http.Response, []byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}
