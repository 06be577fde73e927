package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Strategy 1: native caption API
// ---------------------------------------------------------------------------

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#/]+)`),
}

// YouTubeVideoID extracts the video id from the common YouTube URL forms.
// It returns "" when the URL is not a recognizable YouTube video link.
func YouTubeVideoID(url string) string {
	for _, p := range youtubeIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// CaptionAPI fetches platform-provided captions directly. It is the
// cheapest video strategy: no media download, a single HTTP call.
type CaptionAPI struct {
	Client  *http.Client
	BaseURL string // override for tests; default is the YouTube timedtext endpoint
}

// NewCaptionAPI creates the caption strategy.
func NewCaptionAPI(timeout time.Duration) *CaptionAPI {
	return &CaptionAPI{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: "https://video.google.com/timedtext",
	}
}

func (c *CaptionAPI) Name() string { return "caption-api" }

type timedText struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// Attempt implements Strategy.
func (c *CaptionAPI) Attempt(ctx context.Context, in Input) (*Result, error) {
	videoID := YouTubeVideoID(in.URL)
	if videoID == "" {
		return nil, fmt.Errorf("no caption API for this host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?lang=en&v=%s", c.BaseURL, videoID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("caption fetch: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("caption read: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("caption parse: %w", err)
	}

	var parts []string
	for _, t := range tt.Texts {
		if s := strings.TrimSpace(html.UnescapeString(t.Value)); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no captions available")
	}

	return &Result{
		Title: "YouTube: " + videoID,
		Body:  strings.Join(parts, " "),
	}, nil
}

// ---------------------------------------------------------------------------
// Strategy 2: subtitle-track download
// ---------------------------------------------------------------------------

// SubtitleTrack pulls auto-generated or manual subtitle tracks with the
// media downloader and strips them to plain text. A missing binary is a
// tooling-unavailable failure and falls through like any other.
type SubtitleTrack struct {
	Binary  string
	Timeout time.Duration
	Runner  CommandRunner
}

// NewSubtitleTrack creates the subtitle download strategy.
func NewSubtitleTrack(binary string, timeout time.Duration) *SubtitleTrack {
	return &SubtitleTrack{Binary: binary, Timeout: timeout, Runner: RunCommand}
}

func (s *SubtitleTrack) Name() string { return "subtitle-track" }

// Attempt implements Strategy.
func (s *SubtitleTrack) Attempt(ctx context.Context, in Input) (*Result, error) {
	tempDir, err := os.MkdirTemp("", "subtitles-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	args := []string{
		"--write-sub",
		"--write-auto-sub",
		"--sub-langs", "en,en-US,en-GB",
		"--sub-format", "vtt",
		"--skip-download",
		"--no-warnings",
		"-o", filepath.Join(tempDir, "%(id)s.%(ext)s"),
		in.URL,
	}
	if _, err := s.Runner(cctx, s.Binary, args...); err != nil {
		return nil, fmt.Errorf("subtitle download: %w", err)
	}

	vttFiles, err := filepath.Glob(filepath.Join(tempDir, "*.vtt"))
	if err != nil || len(vttFiles) == 0 {
		return nil, fmt.Errorf("no subtitle tracks found")
	}

	raw, err := os.ReadFile(vttFiles[0])
	if err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}

	text := CleanVTT(string(raw))
	if text == "" {
		return nil, fmt.Errorf("subtitle track empty after cleanup")
	}

	return &Result{Title: s.title(ctx, in.URL), Body: text}, nil
}

// title fetches the video title; failures fall back to a generic one.
func (s *SubtitleTrack) title(ctx context.Context, url string) string {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	out, err := s.Runner(cctx, s.Binary, "--get-title", "--no-warnings", url)
	if err != nil {
		return "Video Transcript"
	}
	if t := strings.TrimSpace(string(out)); t != "" {
		return t
	}
	return "Video Transcript"
}

// ---------------------------------------------------------------------------
// Strategy 3: remote worker offload
// ---------------------------------------------------------------------------

// RemoteWorker POSTs the URL to a configured extraction worker and uses its
// transcript when it answers successfully in time. Any non-2xx response or
// transport error means "unavailable" and the chain falls through to local
// processing; the caller never sees a remote failure.
type RemoteWorker struct {
	URL    string
	Client *http.Client
}

// NewRemoteWorker creates the offload strategy.
func NewRemoteWorker(url string, timeout time.Duration) *RemoteWorker {
	return &RemoteWorker{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (r *RemoteWorker) Name() string { return "remote-worker" }

type remoteWorkerResponse struct {
	Transcript string `json:"transcript"`
	Title      string `json:"title"`
	Method     string `json:"method"`
}

// Attempt implements Strategy.
func (r *RemoteWorker) Attempt(ctx context.Context, in Input) (*Result, error) {
	payload, _ := json.Marshal(map[string]string{"url": in.URL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("worker unavailable: HTTP %d", resp.StatusCode)
	}

	var wr remoteWorkerResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("worker response: %w", err)
	}
	if strings.TrimSpace(wr.Transcript) == "" {
		return nil, fmt.Errorf("worker returned empty transcript")
	}

	title := wr.Title
	if title == "" {
		title = "Video Transcript"
	}
	method := "remote-worker"
	if wr.Method != "" {
		method = "remote-worker/" + wr.Method
	}
	return &Result{Title: title, Body: wr.Transcript, Method: method}, nil
}

// ---------------------------------------------------------------------------
// Strategy 4: audio extraction + transcription
// ---------------------------------------------------------------------------

// AudioTranscriber turns an audio file into a transcript. Implemented by
// transcribe.Chunker.
type AudioTranscriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// AudioTranscribe downloads the audio track and hands it to the chunked
// transcription adapter. It is the most expensive video strategy and runs
// last.
type AudioTranscribe struct {
	Binary      string
	Timeout     time.Duration
	Runner      CommandRunner
	Transcriber AudioTranscriber
}

// NewAudioTranscribe creates the audio fallback strategy.
func NewAudioTranscribe(binary string, timeout time.Duration, t AudioTranscriber) *AudioTranscribe {
	return &AudioTranscribe{Binary: binary, Timeout: timeout, Runner: RunCommand, Transcriber: t}
}

func (a *AudioTranscribe) Name() string { return "audio-transcribe" }

// Attempt implements Strategy.
func (a *AudioTranscribe) Attempt(ctx context.Context, in Input) (*Result, error) {
	tempDir, err := os.MkdirTemp("", "audio-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	cctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-warnings",
		"-o", filepath.Join(tempDir, "%(title)s.%(ext)s"),
		in.URL,
	}
	if _, err := a.Runner(cctx, a.Binary, args...); err != nil {
		return nil, fmt.Errorf("audio download: %w", err)
	}

	audioFiles, err := filepath.Glob(filepath.Join(tempDir, "*.mp3"))
	if err != nil || len(audioFiles) == 0 {
		return nil, fmt.Errorf("no audio downloaded")
	}

	transcript, err := a.Transcriber.TranscribeFile(ctx, audioFiles[0])
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}

	title := strings.TrimSuffix(filepath.Base(audioFiles[0]), filepath.Ext(audioFiles[0]))
	return &Result{Title: title, Body: transcript}, nil
}
