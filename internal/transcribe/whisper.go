// Package transcribe converts audio files into text through a speech-to-text
// API, splitting files that exceed the API's upload limit into sequential
// chunks.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SpeechToText transcribes a single audio file that already fits the
// provider's upload limit.
type SpeechToText interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// WhisperClient implements SpeechToText against the OpenAI audio
// transcription API. It also works with compatible services via a custom
// base URL.
type WhisperClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// WhisperOption configures the Whisper client.
type WhisperOption func(*WhisperClient)

// WithWhisperModel sets the model name (default: whisper-1).
func WithWhisperModel(model string) WhisperOption {
	return func(c *WhisperClient) { c.model = model }
}

// WithWhisperBaseURL overrides the API endpoint (default: https://api.openai.com/v1).
func WithWhisperBaseURL(url string) WhisperOption {
	return func(c *WhisperClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// NewWhisperClient creates a new transcription client.
func NewWhisperClient(apiKey string, opts ...WhisperOption) *WhisperClient {
	c := &WhisperClient{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		model:   "whisper-1",
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe uploads the audio file and returns the transcript text.
func (c *WhisperClient) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if tr.Error != nil {
		return "", fmt.Errorf("api error: %s", tr.Error.Message)
	}
	return tr.Text, nil
}

func truncateBody(b []byte) string {
	const max = 500
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
