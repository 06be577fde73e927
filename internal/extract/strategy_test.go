package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type scriptedStrategy struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (s *scriptedStrategy) Name() string { return s.name }
func (s *scriptedStrategy) Attempt(context.Context, Input) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func TestChainFirstSuccessStops(t *testing.T) {
	first := &scriptedStrategy{name: "first", err: fmt.Errorf("no captions")}
	second := &scriptedStrategy{name: "second", result: &Result{Title: "T", Body: "transcript"}}
	third := &scriptedStrategy{name: "third", result: &Result{Title: "T", Body: "unused"}}
	chain := NewChain(first, second, third)

	res, err := chain.Run(context.Background(), Input{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Body != "transcript" {
		t.Errorf("Body = %q, want the second strategy's result", res.Body)
	}
	if res.Method != "second" {
		t.Errorf("Method = %q, want second", res.Method)
	}
	if third.calls != 0 {
		t.Error("later strategies must not run after a success")
	}
}

func TestChainEmptyResultIsFailure(t *testing.T) {
	empty := &scriptedStrategy{name: "empty", result: &Result{Title: "T", Body: "   "}}
	fallback := &scriptedStrategy{name: "fallback", result: &Result{Body: "real text"}}
	chain := NewChain(empty, fallback)

	res, err := chain.Run(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Body != "real text" {
		t.Errorf("Body = %q, want fallback text", res.Body)
	}
}

func TestChainExhausted(t *testing.T) {
	a := &scriptedStrategy{name: "a", err: fmt.Errorf("broke")}
	b := &scriptedStrategy{name: "b", err: fmt.Errorf("also broke")}
	chain := NewChain(a, b)

	_, err := chain.Run(context.Background(), Input{URL: "https://example.com"})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}
	if len(ex.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(ex.Attempts))
	}
	if ex.Attempts[0].Strategy != "a" || ex.Attempts[1].Strategy != "b" {
		t.Errorf("attempt order = %+v", ex.Attempts)
	}
	if !strings.Contains(ex.Last(), "also broke") {
		t.Errorf("Last() = %q, want the final failure", ex.Last())
	}
}

func TestChainRecordsTextLen(t *testing.T) {
	whitespace := &scriptedStrategy{name: "thin", result: &Result{Body: "   "}}
	broken := &scriptedStrategy{name: "broken", err: fmt.Errorf("fetch failed")}
	chain := NewChain(whitespace, broken)

	_, err := chain.Run(context.Background(), Input{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}
	if ex.Attempts[0].TextLen != 3 {
		t.Errorf("TextLen = %d, want the whitespace result's length", ex.Attempts[0].TextLen)
	}
	if ex.Attempts[1].TextLen != 0 {
		t.Errorf("TextLen = %d, want 0 for a nil result", ex.Attempts[1].TextLen)
	}
}

func TestChainContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &scriptedStrategy{name: "never", result: &Result{Body: "x"}}

	if _, err := NewChain(s).Run(ctx, Input{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.calls != 0 {
		t.Error("strategy ran despite cancelled context")
	}
}

func TestFailurePlaceholderMentionsOrigin(t *testing.T) {
	body := FailurePlaceholder("video", "https://example.com/watch", "all strategies failed")
	for _, want := range []string{"video", "https://example.com/watch", "all strategies failed"} {
		if !strings.Contains(body, want) {
			t.Errorf("placeholder missing %q", want)
		}
	}
}
