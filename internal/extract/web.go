package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	readability "github.com/go-shiori/go-readability"
)

const (
	// userAgent is a realistic browser identity; bare Go user agents are
	// widely blocked.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

	// maxFetchAttempts bounds the static fetch retry loop.
	maxFetchAttempts = 3

	// minPageBytes is the thin-page threshold: responses smaller than this
	// are almost certainly JS-only shells and go to the renderer.
	minPageBytes = 500

	// minReadableChars is the minimum readability output accepted before
	// falling back to the heuristic DOM ladder.
	minReadableChars = 100

	// maxResponseBytes caps how much of a response body is read (5MB).
	maxResponseBytes = 5 * 1024 * 1024

	// TruncationMarker is appended when extracted text hits the length cap.
	TruncationMarker = "\n\n[Content truncated...]"
)

// Renderer produces fully hydrated HTML for pages a static fetch cannot
// serve. See ChromiumRenderer.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// errBlocked marks a response that signals anti-bot blocking; it stops the
// retry loop immediately so the renderer takes over.
var errBlocked = errors.New("request blocked")

// StaticFetch extracts readable text from ordinary web pages. It fetches
// with retries, escalates to the renderer when blocked or when the page is
// implausibly small, and locates the main content with readability first
// and a heuristic DOM ladder second.
type StaticFetch struct {
	Client       *http.Client
	Renderer     Renderer
	MaxBodyChars int
}

// NewStaticFetch creates the web/social extraction strategy.
func NewStaticFetch(timeout time.Duration, renderer Renderer, maxBodyChars int) *StaticFetch {
	return &StaticFetch{
		Client:       &http.Client{Timeout: timeout},
		Renderer:     renderer,
		MaxBodyChars: maxBodyChars,
	}
}

func (s *StaticFetch) Name() string { return "static-fetch" }

// Attempt implements Strategy.
func (s *StaticFetch) Attempt(ctx context.Context, in Input) (*Result, error) {
	html, rendered, err := s.fetch(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	// A tiny document that did not come from the renderer is a strong
	// signal of a JS-only shell; render once before extracting.
	if !rendered && len(html) < minPageBytes && s.Renderer != nil {
		slog.Info("static fetch too small, rendering", "url", in.URL, "bytes", len(html))
		if h, rerr := s.Renderer.Render(ctx, in.URL); rerr == nil {
			html = h
		} else {
			slog.Warn("render fallback failed", "url", in.URL, "error", rerr)
		}
	}

	title, body, err := s.extract(html, in.URL)
	if err != nil {
		return nil, err
	}
	return &Result{Title: title, Body: body}, nil
}

// fetch performs the static GET with up to maxFetchAttempts tries and
// exponential backoff. A block signal (403/429) aborts the retry loop and
// escalates to the renderer exactly once; no further static retry happens
// after a block. The bool result reports whether the HTML came from the
// renderer.
func (s *StaticFetch) fetch(ctx context.Context, url string) (string, bool, error) {
	var html string

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchAttempts-1), ctx)
	err := backoff.Retry(func() error {
		body, status, err := s.doFetch(ctx, url)
		if err != nil {
			return err
		}
		if status == http.StatusForbidden || status == http.StatusTooManyRequests {
			return backoff.Permanent(fmt.Errorf("%w: HTTP %d", errBlocked, status))
		}
		if status != http.StatusOK {
			return fmt.Errorf("HTTP %d for %s", status, url)
		}
		html = body
		return nil
	}, bo)

	if err == nil {
		return html, false, nil
	}

	if s.Renderer == nil {
		return "", false, err
	}
	slog.Info("static fetch failed, rendering", "url", url, "error", err)
	rendered, rerr := s.Renderer.Render(ctx, url)
	if rerr != nil {
		return "", false, fmt.Errorf("static fetch failed (%v); render fallback: %w", err, rerr)
	}
	return rendered, true, nil
}

func (s *StaticFetch) doFetch(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

// extract locates the main content of an HTML document. Readability runs
// first; when it yields too little, the heuristic ladder takes over:
// semantic main/article elements, then class/id pattern matches, then all
// paragraphs, then the meta description, then the whole body.
func (s *StaticFetch) extract(html, url string) (string, string, error) {
	parsedURL, _ := nurl.Parse(url)

	if article, err := readability.FromReader(strings.NewReader(html), parsedURL); err == nil {
		text := normalizeText(article.TextContent)
		if utf8.RuneCountInString(text) >= minReadableChars {
			title := strings.TrimSpace(article.Title)
			if title == "" {
				title = hostOf(url)
			}
			return title, s.truncate(text), nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = hostOf(url)
	}

	text := heuristicText(doc)
	if text == "" {
		return "", "", fmt.Errorf("no meaningful content found")
	}
	return title, s.truncate(normalizeText(text)), nil
}

// noiseSelectors are elements removed before extraction; they carry no
// meaningful content.
var noiseSelectors = []string{
	"script", "style", "noscript", "nav", "footer", "header", "iframe", "svg",
}

var contentClassPattern = regexp.MustCompile(`(?i)content|article|post|body|formatted`)

func heuristicText(doc *goquery.Document) string {
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	// 1. Semantic containers.
	for _, tag := range []string{"main", "article"} {
		if sel := doc.Find(tag); sel.Length() > 0 {
			if t := selectionText(sel.First()); t != "" {
				return t
			}
		}
	}

	// 2. Elements whose class or id matches a content heuristic.
	var heuristic *goquery.Selection
	doc.Find("div, section").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		if contentClassPattern.MatchString(class) || contentClassPattern.MatchString(id) {
			heuristic = sel
			return false
		}
		return true
	})
	if heuristic != nil {
		if t := selectionText(heuristic); t != "" {
			return t
		}
	}

	// 3. All paragraphs concatenated.
	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}

	// 4. Meta description.
	for _, q := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		if content, ok := doc.Find(q).First().Attr("content"); ok {
			if t := strings.TrimSpace(content); t != "" {
				return t
			}
		}
	}

	// 5. Whole body, last resort.
	return selectionText(doc.Find("body").First())
}

func selectionText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func (s *StaticFetch) truncate(text string) string {
	limit := s.MaxBodyChars
	if limit <= 0 {
		limit = 100000
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + TruncationMarker
}

func hostOf(url string) string {
	if u, err := nurl.Parse(url); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return url
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
