package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client talks to the generative video rendering service
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Scene mirrors the planner's scene shape on the wire
type Scene struct {
	Index           int    `json:"index"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	Narration       string `json:"narration"`
}

// RenderRequest asks the service for one video rendered from a scene list
type RenderRequest struct {
	Scenes         []Scene `json:"scenes"`
	Style          string  `json:"style"`
	TargetDuration int     `json:"target_duration"`
}

func NewClient(baseURL string, c *http.Client) *Client {
	return &Client{
		httpClient: c,
		baseURL:    baseURL,
	}
}

// Render submits the scene list and returns the rendered video bytes.
// Rendering is a long call, minutes for longer targets; the context carries
// the caller's deadline.
func (c *Client) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/renders", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "video/mp4")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("render service error: %s: %s", resp.Status, string(body))
	}

	video, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered video: %v", err)
	}
	if len(video) == 0 {
		return nil, fmt.Errorf("render service returned an empty video")
	}

	return video, nil
}
