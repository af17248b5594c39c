package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

const issueHTML = `<!DOCTYPE html>
<html><head>
<link rel="canonical" href="https://tldr.tech/ai/2024-05-06" />
</head><body>
<div class="max-w-3xl">
<h2>Big Model Released</h2>
<p>A lab shipped a model. <a href="https://example.com/story?utm_source=tldrai">Read more (5 minute read)</a></p>
<p>Social: <a href="https://twitter.com/share?utm_source=tldrai">tweet</a></p>
<p>Also: <a href="https://tldr.tech/ai/archive?utm_source=tldrai">archive</a></p>
<p>Unrelated: <a href="https://example.org/unmarked">plain link</a></p>
</div>
</body></html>`

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, logx.Nop()), srv
}

func TestFetchParsesIssue(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/2024-05-06") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, issueHTML)
	}))

	d := plan.NewDate(2024, time.May, 6)
	nl, err := c.Fetch(context.Background(), d)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if nl.Date != d {
		t.Fatalf("expected canonical date %s, got %s", d, nl.Date)
	}
	if !strings.Contains(nl.Text, "Big Model Released") {
		t.Fatalf("issue text missing headline: %q", nl.Text)
	}
	if len(nl.Links) != 1 {
		t.Fatalf("expected 1 article link after filtering, got %d: %v", len(nl.Links), nl.Links)
	}
	if nl.Links[0].URL != "https://example.com/story?utm_source=tldrai" {
		t.Fatalf("wrong link kept: %s", nl.Links[0].URL)
	}
	if !strings.Contains(nl.Links[0].Context, "A lab shipped a model") {
		t.Fatalf("link context not captured: %q", nl.Links[0].Context)
	}
}

func TestFetchNotFoundIsNotPublished(t *testing.T) {
	c, _ := testClient(t, http.NotFoundHandler())

	_, err := c.Fetch(context.Background(), plan.NewDate(2024, time.May, 6))
	if !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished, got %v", err)
	}
}

func TestFetchRedirectIsNotPublished(t *testing.T) {
	// Unknown dates redirect to the landing page; following the redirect
	// would return an unrelated document, so a redirect means "no issue".
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	}))

	_, err := c.Fetch(context.Background(), plan.NewDate(2024, time.May, 6))
	if !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished, got %v", err)
	}
}

func TestFetchServerErrorIsTyped(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Fetch(context.Background(), plan.NewDate(2024, time.May, 6))
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", httpErr.StatusCode)
	}
	if errors.Is(err, ErrNotPublished) {
		t.Fatal("server error must not read as not-published")
	}
}

func TestFetchArticlesSkipsFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><nav>menu</nav><article><p>Useful body text.</p></article><footer>foot</footer></body></html>`)
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c, srv := testClient(t, mux)

	got := c.FetchArticles(context.Background(), []Link{
		{URL: srv.URL + "/bad"},
		{URL: srv.URL + "/good"},
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 article, got %d", len(got))
	}
	if !strings.Contains(got[0].Text, "Useful body text.") {
		t.Fatalf("article body missing: %q", got[0].Text)
	}
	if strings.Contains(got[0].Text, "menu") || strings.Contains(got[0].Text, "foot") {
		t.Fatalf("page chrome not stripped: %q", got[0].Text)
	}
}

func TestTruncateAddsSuffix(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := truncate(long, 10)
	if got != long[:10]+truncationSuffix {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatal("short text must be untouched")
	}
}
