package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	logx "briefbot/pkg/logx"
)

// FetchArticles downloads the bodies of the selected links. Failures are
// logged and skipped: a briefing with fewer source articles is still a
// briefing, and one dead link must not sink the whole date.
func (c *Client) FetchArticles(ctx context.Context, links []Link) []Article {
	var out []Article
	for i, l := range links {
		text, err := c.fetchArticle(ctx, l.URL)
		if err != nil {
			c.log.Warn("article fetch failed; skipping",
				logx.String("url", l.URL), logx.Int("index", i+1), logx.Err(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, Article{URL: l.URL, Text: text})
	}
	return out
}

func (c *Client) fetchArticle(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}
	return extractArticleText(doc), nil
}

// extractArticleText pulls the readable body out of an arbitrary article
// page: strip chrome, then take the most specific content container found.
func extractArticleText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	body := findFirst(doc, "article", "main", `div[class*="content"]`, `div[class*="article"]`, `div[role="main"]`, "body")
	if body == nil {
		return ""
	}

	var lines []string
	for _, line := range strings.Split(body.Text(), "\n") {
		if t := strings.TrimSpace(line); t != "" {
			lines = append(lines, t)
		}
	}
	return truncate(strings.Join(lines, "\n"), maxArticleChars)
}
