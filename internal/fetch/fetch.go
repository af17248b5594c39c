// Package fetch retrieves and parses the daily newsletter issue.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

// ErrNotPublished marks a date with no issue (weekend, holiday, or simply
// not out yet). It is expected and must not be reported as a failure.
var ErrNotPublished = errors.New("newsletter not published")

// HTTPError is a non-2xx response from the newsletter site or an article host.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d fetching %s", e.StatusCode, e.URL)
}

const (
	DefaultBaseURL = "https://tldr.tech/ai"

	defaultTimeout = 15 * time.Second

	// Content caps carried over from the original pipeline; they exist to
	// keep the summarizer prompt inside its input budget.
	maxNewsletterChars = 5000
	maxArticleChars    = 3000

	truncationSuffix = "... [content truncated]"
)

// Newsletter is one parsed issue. It lives for a single pipeline run.
type Newsletter struct {
	Date     plan.Date
	URL      string
	Text     string
	Links    []Link
	Articles []Article
}

// Link is a candidate article link with the text around it for context.
type Link struct {
	URL     string
	Text    string
	Context string
}

// Article is an extracted article body for a selected link.
type Article struct {
	URL  string
	Text string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	conv *md.Converter
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			// The site redirects unknown dates to its landing page; following
			// that would hand us an unrelated document. Treat any redirect as
			// "no issue for this date".
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		conv: md.NewConverter("", true, nil),
		log:  log,
	}
}

// Some hosts refuse requests without browser-looking headers.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

// URLFor returns the issue URL for a date.
func (c *Client) URLFor(d plan.Date) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + d.String()
}

// Fetch downloads and parses the issue for d.
//
// A redirect or non-200 status maps to ErrNotPublished; transport errors are
// returned as-is so the caller can tell "no issue" from "we failed".
func (c *Client) Fetch(ctx context.Context, d plan.Date) (*Newsletter, error) {
	url := c.URLFor(d)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	setBrowserHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400, resp.StatusCode == http.StatusNotFound:
		c.log.Debug("no issue for date", logx.String("date", d.String()), logx.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%s: %w", d, ErrNotPublished)
	case resp.StatusCode != http.StatusOK:
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	nl, err := parseNewsletter(doc, c.conv)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	nl.URL = url
	if nl.Date.IsZero() {
		nl.Date = d
	}
	return nl, nil
}

var reIssueDate = regexp.MustCompile(`/(\d{4}-\d{2}-\d{2})/?$`)

// parseNewsletter extracts the issue body and candidate article links.
func parseNewsletter(doc *goquery.Document, conv *md.Converter) (*Newsletter, error) {
	main := findFirst(doc, "div.max-w-3xl", "main", "body")
	if main == nil {
		return nil, errors.New("no main content found")
	}

	text := conv.Convert(main)
	if strings.TrimSpace(text) == "" {
		text = main.Text()
	}
	nl := &Newsletter{Text: truncate(strings.TrimSpace(text), maxNewsletterChars)}

	// The canonical link carries the issue's own date; a default or archive
	// page would disagree with the date we asked for.
	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if m := reIssueDate.FindStringSubmatch(canonical); m != nil {
			if d, err := plan.ParseDate(m[1]); err == nil {
				nl.Date = d
			}
		}
	}

	nl.Links = extractLinks(doc)
	return nl, nil
}

func findFirst(doc *goquery.Document, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// extractLinks collects external article links, skipping social/subscription
// noise. The utm_source marker is how the newsletter tags its own article
// links, so it doubles as a cheap relevance filter.
func extractLinks(doc *goquery.Document) []Link {
	var links []Link
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.HasPrefix(href, "http") || strings.Contains(href, "tldr.tech") {
			return
		}
		lower := strings.ToLower(href)
		if strings.Contains(lower, "twitter.com") ||
			strings.Contains(lower, "facebook.com") ||
			strings.Contains(lower, "linkedin.com") ||
			strings.Contains(lower, "subscribe") {
			return
		}
		if !strings.Contains(href, "utm_source=tldrai") {
			return
		}

		text := strings.TrimSpace(a.Text())
		context := text
		if parent := a.Parent(); parent.Length() > 0 {
			if t := strings.TrimSpace(parent.Text()); t != "" {
				context = t
			}
		}
		links = append(links, Link{URL: href, Text: text, Context: context})
	})
	return links
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + truncationSuffix
}
