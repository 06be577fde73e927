package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSTT records calls and answers from a script keyed by call number.
type fakeSTT struct {
	calls   []string
	answers func(call int, path string) (string, error)
}

func (f *fakeSTT) Transcribe(_ context.Context, path string) (string, error) {
	f.calls = append(f.calls, path)
	return f.answers(len(f.calls), path)
}

// writeAudioFile creates a file of the given size in a temp dir.
func writeAudioFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeRunner answers ffprobe with a fixed duration and records ffmpeg calls.
type fakeRunner struct {
	duration    string
	ffmpegCalls [][]string
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	if name == "ffprobe" {
		return []byte(f.duration + "\n"), nil
	}
	f.ffmpegCalls = append(f.ffmpegCalls, args)
	return nil, nil
}

func newTestChunker(stt SpeechToText, limit int64, runner CommandRunner) *Chunker {
	c := NewChunker(stt, limit, "ffmpeg", "ffprobe")
	if runner != nil {
		c.Runner = runner
	}
	return c
}

func TestTranscribeFileUnderLimit(t *testing.T) {
	path := writeAudioFile(t, 100)
	stt := &fakeSTT{answers: func(int, string) (string, error) { return "hello world", nil }}
	c := newTestChunker(stt, 1000, func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("no subprocess expected for a file under the limit")
		return nil, nil
	})

	got, err := c.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if got != "hello world" {
		t.Errorf("transcript = %q, want %q", got, "hello world")
	}
	if len(stt.calls) != 1 {
		t.Errorf("STT calls = %d, want 1", len(stt.calls))
	}
	if stt.calls[0] != path {
		t.Errorf("STT called with %q, want original path %q", stt.calls[0], path)
	}
}

func TestTranscribeFileChunkCountAndOrder(t *testing.T) {
	// 2500 bytes at a 1000-byte limit: ceil gives 3 chunks.
	path := writeAudioFile(t, 2500)
	runner := &fakeRunner{duration: "300.0"}
	stt := &fakeSTT{answers: func(call int, _ string) (string, error) {
		return fmt.Sprintf("part%d", call), nil
	}}
	c := newTestChunker(stt, 1000, runner.run)

	got, err := c.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if got != "part1 part2 part3" {
		t.Errorf("transcript = %q, want chunks joined in order", got)
	}
	if len(runner.ffmpegCalls) != 3 {
		t.Fatalf("ffmpeg calls = %d, want 3", len(runner.ffmpegCalls))
	}
	// Each chunk covers a third of the 300s file.
	first := strings.Join(runner.ffmpegCalls[0], " ")
	if !strings.Contains(first, "-ss 0.000") || !strings.Contains(first, "-t 100.000") {
		t.Errorf("first chunk args = %q, want -ss 0.000 -t 100.000", first)
	}
	last := strings.Join(runner.ffmpegCalls[2], " ")
	if !strings.Contains(last, "-ss 200.000") {
		t.Errorf("last chunk args = %q, want -ss 200.000", last)
	}
}

func TestTranscribeFileRetriesTransientFailure(t *testing.T) {
	path := writeAudioFile(t, 100)
	stt := &fakeSTT{answers: func(call int, _ string) (string, error) {
		if call < 3 {
			return "", fmt.Errorf("rate limited")
		}
		return "eventually", nil
	}}
	c := newTestChunker(stt, 1000, nil)

	got, err := c.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if got != "eventually" {
		t.Errorf("transcript = %q, want %q", got, "eventually")
	}
	if len(stt.calls) != 3 {
		t.Errorf("STT calls = %d, want 3 (two failures then success)", len(stt.calls))
	}
}

func TestTranscribeFileSkipsFailedChunk(t *testing.T) {
	// 2 chunks; every attempt on the first chunk fails, second succeeds.
	path := writeAudioFile(t, 1500)
	runner := &fakeRunner{duration: "200.0"}
	stt := &fakeSTT{answers: func(call int, _ string) (string, error) {
		if call <= maxChunkAttempts {
			return "", fmt.Errorf("backend down")
		}
		return "second half", nil
	}}
	c := newTestChunker(stt, 1000, runner.run)

	got, err := c.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if got != "second half" {
		t.Errorf("transcript = %q, want the surviving chunk only", got)
	}
}

func TestTranscribeFileAllChunksFail(t *testing.T) {
	path := writeAudioFile(t, 1500)
	runner := &fakeRunner{duration: "200.0"}
	stt := &fakeSTT{answers: func(int, string) (string, error) {
		return "", fmt.Errorf("backend down")
	}}
	c := newTestChunker(stt, 1000, runner.run)

	if _, err := c.TranscribeFile(context.Background(), path); err == nil {
		t.Fatal("expected error when every chunk fails")
	}
}
