package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Client talks to a whisper-compatible speech-to-text service
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Transcription is the structured result of one transcription request
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func NewClient(baseURL string, c *http.Client) *Client {
	return &Client{
		httpClient: c,
		baseURL:    baseURL,
	}
}

// Transcribe submits the media content for transcription and returns the
// recognized text
func (c *Client) Transcribe(ctx context.Context, filename string, content []byte) (*Transcription, error) {
	var requestBody bytes.Buffer
	multipartWriter := multipart.NewWriter(&requestBody)

	fileWriter, err := multipartWriter.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %v", err)
	}
	if _, err = io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to write file content: %v", err)
	}

	if err := multipartWriter.WriteField("response_format", "json"); err != nil {
		return nil, fmt.Errorf("failed to write response format: %v", err)
	}

	multipartWriter.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/audio/transcriptions", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transcription service error: %s: %s", resp.Status, string(body))
	}

	var transcription Transcription
	if err := json.NewDecoder(resp.Body).Decode(&transcription); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	if transcription.Text == "" {
		return nil, fmt.Errorf("transcription service returned no text")
	}
	return &transcription, nil
}
