package transcribe

import (
	"context"
	"path/filepath"
)

// StubSpeechToText returns mock transcripts (for development/testing).
type StubSpeechToText struct{}

func (s *StubSpeechToText) Transcribe(_ context.Context, path string) (string, error) {
	return "This is a stub transcript for " + filepath.Base(path) +
		". The speaker discusses the main topic, walks through supporting examples, and closes with practical takeaways.", nil
}
