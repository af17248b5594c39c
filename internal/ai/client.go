// Package ai talks to the Anthropic API for summarization and link selection.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/agents"
	"github.com/aktagon/llmkit/anthropic/types"

	"briefbot/internal/fetch"
	logx "briefbot/pkg/logx"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2000
)

type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
	MaxArticles int
}

type Client struct {
	cfg      Config
	apiKey   string
	selector *agents.ChatAgent
	log      logx.Logger
}

func New(cfg Config, apiKey string, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	selector, err := agents.New(apiKey)
	if err != nil {
		return nil, fmt.Errorf("creating selector agent: %w", err)
	}
	return &Client{cfg: cfg, apiKey: apiKey, selector: selector, log: log}, nil
}

// Summarize produces the Telegram-HTML briefing text for one issue.
func (c *Client) Summarize(ctx context.Context, nl *fetch.Newsletter) (string, error) {
	_ = ctx // llmkit manages its own request lifecycle

	settings := types.RequestSettings{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	resp, err := anthropic.PromptWithSettings(summarySystemPrompt, summaryUserPrompt(nl), "", c.apiKey, settings)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", nl.Date, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("summarize %s: empty response", nl.Date)
	}
	return resp.Content[0].Text, nil
}

// SelectArticles picks the links worth fetching full bodies for.
//
// Model or parse failures fall back to the heuristic selection; a worse pick
// of articles is never worth failing the date over.
func (c *Client) SelectArticles(ctx context.Context, nl *fetch.Newsletter) []fetch.Link {
	_ = ctx

	if len(nl.Links) == 0 {
		return nil
	}
	if len(nl.Links) <= c.cfg.MaxArticles {
		return nl.Links
	}

	resp, err := c.selector.Chat(selectionUserPrompt(nl), &agents.ChatOptions{
		SystemPrompt: selectionSystemPrompt,
		Schema:       selectionSchema,
		MaxTokens:    512,
	})
	if err != nil {
		c.log.Warn("article selection failed; using heuristic", logx.Err(err))
		return selectSimple(nl.Links, c.cfg.MaxArticles)
	}

	var sel selectionResult
	if err := json.Unmarshal([]byte(resp.Text), &sel); err != nil || len(sel.Selected) == 0 {
		c.log.Warn("article selection unparseable; using heuristic", logx.Err(err))
		return selectSimple(nl.Links, c.cfg.MaxArticles)
	}

	picked := pickByIndex(nl.Links, sel.Selected)
	if len(picked) == 0 {
		return selectSimple(nl.Links, c.cfg.MaxArticles)
	}
	return picked
}

// pickByIndex resolves 1-based indexes, dropping out-of-range values and
// duplicate URLs (ignoring query strings).
func pickByIndex(links []fetch.Link, indexes []int) []fetch.Link {
	var out []fetch.Link
	seen := map[string]bool{}
	for _, n := range indexes {
		if n < 1 || n > len(links) {
			continue
		}
		l := links[n-1]
		base := strings.SplitN(l.URL, "?", 2)[0]
		if seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, l)
	}
	return out
}

// selectSimple keeps the first link per domain until max is reached.
func selectSimple(links []fetch.Link, max int) []fetch.Link {
	var out []fetch.Link
	seen := map[string]bool{}
	for _, l := range links {
		u, err := url.Parse(l.URL)
		if err != nil || u.Host == "" {
			continue
		}
		if seen[u.Host] {
			continue
		}
		seen[u.Host] = true
		out = append(out, l)
		if len(out) >= max {
			break
		}
	}
	return out
}
