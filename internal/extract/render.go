package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes an external binary and returns its combined
// output. Tests substitute a fake runner.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// RunCommand is the default CommandRunner.
func RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return out, fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return out, nil
}

// settleBudgetMS is how long the browser advances virtual time after the
// DOM is ready, giving client-side hydration a chance to run.
const settleBudgetMS = 5000

// ChromiumRenderer drives a headless browser to obtain fully hydrated HTML
// for pages a static fetch cannot serve. A missing or failing browser is a
// strategy failure, never fatal to the pipeline.
type ChromiumRenderer struct {
	Binary  string
	Timeout time.Duration
	Runner  CommandRunner
}

// NewChromiumRenderer creates a renderer around the given chromium binary.
func NewChromiumRenderer(binary string, timeout time.Duration) *ChromiumRenderer {
	return &ChromiumRenderer{Binary: binary, Timeout: timeout, Runner: RunCommand}
}

// Render navigates to url, waits for DOM readiness plus the settle budget,
// and returns the rendered HTML.
func (r *ChromiumRenderer) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := []string{
		"--headless=new",
		"--disable-gpu",
		"--no-sandbox",
		"--disable-blink-features=AutomationControlled",
		"--user-agent=" + userAgent,
		fmt.Sprintf("--virtual-time-budget=%d", settleBudgetMS),
		"--dump-dom",
		url,
	}

	out, err := r.Runner(ctx, r.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}

	html := strings.TrimSpace(string(out))
	if html == "" {
		return "", fmt.Errorf("render %s: empty document", url)
	}
	return html, nil
}
