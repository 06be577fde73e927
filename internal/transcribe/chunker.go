package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// CommandRunner executes an external command and returns its combined
// output. Injectable so tests can fake ffmpeg and ffprobe.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// RunCommand is the default CommandRunner based on os/exec.
func RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if len(detail) > 500 {
			detail = detail[:500]
		}
		if detail != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// maxChunkAttempts is how many times a single chunk upload is tried before
// the chunk is skipped.
const maxChunkAttempts = 3

// Chunker transcribes audio files of any size. Files at or under SizeLimit
// go straight to the speech-to-text backend; larger files are split into
// equal-duration segments with ffmpeg and transcribed sequentially. A chunk
// that still fails after retries is skipped, leaving a gap rather than
// failing the whole file.
type Chunker struct {
	STT           SpeechToText
	SizeLimit     int64
	FFmpegBinary  string
	FFprobeBinary string
	Runner        CommandRunner
}

// NewChunker creates a chunked transcription adapter.
func NewChunker(stt SpeechToText, sizeLimit int64, ffmpeg, ffprobe string) *Chunker {
	return &Chunker{
		STT:           stt,
		SizeLimit:     sizeLimit,
		FFmpegBinary:  ffmpeg,
		FFprobeBinary: ffprobe,
		Runner:        RunCommand,
	}
}

// TranscribeFile transcribes the audio file at path, chunking when it
// exceeds the size limit. Chunk transcripts are joined in order with a
// single space.
func (c *Chunker) TranscribeFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat audio: %w", err)
	}

	if info.Size() <= c.SizeLimit {
		return c.transcribeWithRetry(ctx, path)
	}

	duration, err := c.probeDuration(ctx, path)
	if err != nil {
		return "", fmt.Errorf("probe duration: %w", err)
	}

	// Number of chunks is the ceiling of size over the limit, so every
	// chunk lands under it with margin to spare after re-encoding.
	chunks := int((info.Size() + c.SizeLimit - 1) / c.SizeLimit)
	chunkDur := duration / float64(chunks)

	tempDir, err := os.MkdirTemp("", "chunks-*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	slog.Info("chunking audio for transcription",
		"size", info.Size(), "chunks", chunks, "chunk_seconds", chunkDur)

	var parts []string
	for i := 0; i < chunks; i++ {
		chunkPath := filepath.Join(tempDir, fmt.Sprintf("chunk-%03d.mp3", i))
		if err := c.exportChunk(ctx, path, chunkPath, float64(i)*chunkDur, chunkDur); err != nil {
			return "", fmt.Errorf("export chunk %d: %w", i+1, err)
		}

		text, err := c.transcribeWithRetry(ctx, chunkPath)
		if err != nil {
			// Skip the chunk; the transcript has a gap but the rest of
			// the file still comes through.
			slog.Warn("chunk transcription failed, skipping",
				"chunk", i+1, "of", chunks, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
		os.Remove(chunkPath)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("all %d chunks failed to transcribe", chunks)
	}
	return strings.Join(parts, " "), nil
}

// transcribeWithRetry retries transient backend failures with exponential
// backoff before giving up on the file or chunk.
func (c *Chunker) transcribeWithRetry(ctx context.Context, path string) (string, error) {
	var text string
	op := func() error {
		var err error
		text, err = c.STT.Transcribe(ctx, path)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxChunkAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return text, nil
}

// probeDuration asks ffprobe for the total duration in seconds.
func (c *Chunker) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := c.Runner(ctx, c.FFprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %f", duration)
	}
	return duration, nil
}

// exportChunk re-encodes one segment as mono 16 kHz mp3, the cheapest format
// the backend accepts.
func (c *Chunker) exportChunk(ctx context.Context, src, dst string, start, dur float64) error {
	_, err := c.Runner(ctx, c.FFmpegBinary,
		"-y",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-t", strconv.FormatFloat(dur, 'f', 3, 64),
		"-i", src,
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "128k",
		dst)
	return err
}
