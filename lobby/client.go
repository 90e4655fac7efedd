package lobby

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// RoomInfo is the lobby's view of a room before joining it.
type RoomInfo struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	BuyIn      int64  `json:"buy_in"`
	Status     string `json:"status"`
	SeatedNum  int    `json:"seated_num"`
	ChannelURL string `json:"channel_url"`
}

type ThemeInfo struct {
	Theme string `json:"theme"`
}

type BalanceInfo struct {
	UserID  string `json:"user_id"`
	Credits int64  `json:"credits"`
}

// Client is the REST bootstrap client for the lobby API. It fetches the
// initial room, theme and balance before the event channel takes over.
type Client struct {
	config Config
	client *http.Client
	logger zerolog.Logger
}

type ClientOpt func(*Client)

func WithLogger(logger zerolog.Logger) ClientOpt {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "lobby").Logger()
	}
}

func NewClient(config Config, opts ...ClientOpt) *Client {
	c := &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) GetRoom(roomCode string) (*RoomInfo, error) {
	var info RoomInfo
	if err := c.get("/v1/rooms/"+url.PathEscape(roomCode), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) ListRooms() ([]*RoomInfo, error) {
	var rooms []*RoomInfo
	if err := c.get("/v1/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) GetTheme() (string, error) {
	var info ThemeInfo
	if err := c.get("/v1/settings/theme", &info); err != nil {
		return "", err
	}
	return info.Theme, nil
}

func (c *Client) GetBalance(userID string) (int64, error) {
	var info BalanceInfo
	if err := c.get("/v1/users/"+url.PathEscape(userID)+"/balance", &info); err != nil {
		return 0, err
	}
	return info.Credits, nil
}

func (c *Client) get(endpoint string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Msg("lobby request failed")
		return fmt.Errorf("lobby API returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
