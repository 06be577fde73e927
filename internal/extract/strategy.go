// Package extract implements the extraction strategy chains that turn a URL
// or uploaded file into normalized plain text. Each content category has an
// ordered list of strategies; the chain tries them in priority order and the
// first success is final.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Input identifies what a strategy should extract from.
type Input struct {
	URL      string
	Category string
}

// Result is a successful extraction.
type Result struct {
	Title  string
	Body   string
	Method string // name of the strategy that produced it
}

// Strategy is one extraction method. Attempt returns a Result or an error;
// an error never aborts the chain, it causes fallthrough to the next
// strategy.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, in Input) (*Result, error)
}

// Attempt records one try of one strategy against one input.
type Attempt struct {
	Strategy string
	TextLen  int
	Err      error
}

// ExhaustedError is returned by Chain.Run when every strategy failed.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return "all strategies failed: " + strings.Join(parts, "; ")
}

// Last returns the final attempt's error message, or a generic one.
func (e *ExhaustedError) Last() string {
	if len(e.Attempts) == 0 {
		return "no strategies configured"
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("%s: %v", last.Strategy, last.Err)
}

// Chain is a typed ordered list of strategies for one category.
type Chain struct {
	strategies []Strategy
}

// NewChain creates a chain that tries strategies in the given order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Run executes the chain: strategies are attempted strictly in priority
// order and the first success stops the chain. Every failure is logged with
// the strategy identity and recorded; only exhaustion of the whole list
// produces an error.
func (c *Chain) Run(ctx context.Context, in Input) (*Result, error) {
	var attempts []Attempt
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.Attempt(ctx, in)
		if err == nil && res != nil && strings.TrimSpace(res.Body) != "" {
			if res.Method == "" {
				res.Method = s.Name()
			}
			slog.Info("extraction succeeded",
				"strategy", s.Name(), "url", in.URL, "chars", utf8.RuneCountInString(res.Body))
			return res, nil
		}
		if err == nil {
			err = fmt.Errorf("empty result")
		}
		textLen := 0
		if res != nil {
			textLen = utf8.RuneCountInString(res.Body)
		}
		slog.Warn("extraction strategy failed", "strategy", s.Name(), "url", in.URL, "error", err)
		attempts = append(attempts, Attempt{Strategy: s.Name(), TextLen: textLen, Err: err})
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

// FailurePlaceholder builds the body text recorded on a source whose
// extraction failed terminally. Downstream enrichment always has some text
// to inspect; a failed source never carries a null body.
func FailurePlaceholder(category, origin, reason string) string {
	return fmt.Sprintf(`[Content extraction failed: %s]

This content could not be processed automatically. This may be due to:
- Login/authentication requirements
- Anti-scraping protections
- Unsupported content format

Category: %s
Origin: %s`, reason, category, origin)
}

// FileFailurePlaceholder is the FailurePlaceholder variant for uploads.
func FileFailurePlaceholder(filename, reason string) string {
	return fmt.Sprintf(`[File processing failed: %s]

File: %s

Supported formats:
- Audio/Video: mp3, mp4, wav, m4a, webm (transcribed)
- Documents: pdf, docx, xlsx (text extraction)
- Text: txt, md, csv, json`, reason, filename)
}
