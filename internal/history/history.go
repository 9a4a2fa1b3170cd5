package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"govorilka/internal/models"
)

// Room is what the backend returns for a room on entry: the stored
// transcript plus the room's identifier.
type Room struct {
	Messages []models.Message `json:"messages"`
	ID       string           `json:"id"`
}

type roomRequest struct {
	Title string `json:"title"`
}

// Client fetches room history over the backend's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchRoom loads the stored transcript for a room by title.
func (c *Client) FetchRoom(ctx context.Context, title string) (Room, error) {
	body, err := json.Marshal(roomRequest{Title: title})
	if err != nil {
		return Room{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login/room", bytes.NewReader(body))
	if err != nil {
		return Room{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Room{}, fmt.Errorf("failed to fetch room %q: %w", title, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Room{}, fmt.Errorf("failed to fetch room %q: status %d", title, resp.StatusCode)
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return Room{}, fmt.Errorf("failed to decode room %q: %w", title, err)
	}

	return room, nil
}
