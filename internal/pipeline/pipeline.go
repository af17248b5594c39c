// Package pipeline runs the per-date workflow: fetch, summarize, chunk,
// deliver, and report whether the date may be marked in the ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"briefbot/internal/chunk"
	"briefbot/internal/fetch"
	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

// Fetcher retrieves one newsletter issue and article bodies.
type Fetcher interface {
	Fetch(ctx context.Context, d plan.Date) (*fetch.Newsletter, error)
	FetchArticles(ctx context.Context, links []fetch.Link) []fetch.Article
}

// Summarizer turns an issue into briefing text and picks which article
// links deserve a full fetch.
type Summarizer interface {
	Summarize(ctx context.Context, nl *fetch.Newsletter) (string, error)
	SelectArticles(ctx context.Context, nl *fetch.Newsletter) []fetch.Link
}

// Sender delivers an ordered part sequence to one chat.
type Sender interface {
	SendParts(ctx context.Context, chatID int64, parts []string) error
}

type Config struct {
	Recipients []int64
	MaxLen     int // provider per-message cap; defaults to Telegram's
}

// Result is the outcome for one date.
//
// Delivered=true means every part reached every recipient; only then may the
// ledger mark the date. Skipped means the source had no issue (or an
// unrelated document) for the date, which is expected rather than an error.
type Result struct {
	Date      plan.Date
	Delivered bool
	Skipped   bool
	Parts     int
	Failed    []int64 // recipients that did not get the full sequence
	Err       error
}

type Pipeline struct {
	cfg        Config
	fetcher    Fetcher
	summarizer Summarizer
	sender     Sender
	log        logx.Logger
}

func New(cfg Config, f Fetcher, s Summarizer, snd Sender, log logx.Logger) *Pipeline {
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = chunk.TelegramMaxLen
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{cfg: cfg, fetcher: f, summarizer: s, sender: snd, log: log}
}

// ProcessDate runs the full workflow for one date, short-circuiting on the
// first failing step. It never touches the ledger; that is the runner's call.
func (p *Pipeline) ProcessDate(ctx context.Context, d plan.Date) Result {
	res := Result{Date: d}
	log := p.log.With(logx.String("date", d.String()))

	nl, err := p.fetcher.Fetch(ctx, d)
	if err != nil {
		if errors.Is(err, fetch.ErrNotPublished) {
			log.Info("no issue published; will retry on a later run")
			res.Skipped = true
			return res
		}
		log.Warn("fetch failed", logx.Err(err))
		res.Err = fmt.Errorf("fetch: %w", err)
		return res
	}

	// A 200 response with a different embedded date means the site served an
	// unrelated or default page. Same handling as "not published".
	if nl.Date != d {
		log.Warn("issue date mismatch; treating as unpublished",
			logx.String("got", nl.Date.String()))
		res.Skipped = true
		return res
	}

	if selected := p.summarizer.SelectArticles(ctx, nl); len(selected) > 0 {
		nl.Articles = p.fetcher.FetchArticles(ctx, selected)
	}

	summary, err := p.summarizer.Summarize(ctx, nl)
	if err != nil {
		log.Error("summarization failed", logx.Err(err))
		res.Err = fmt.Errorf("summarize: %w", err)
		return res
	}

	parts := chunk.Split(chunk.Clean(p.composeMessage(nl, summary)), p.cfg.MaxLen)
	res.Parts = len(parts)

	res.Failed = p.deliverAll(ctx, parts, log)
	res.Delivered = len(res.Failed) == 0
	if res.Delivered {
		log.Info("briefing delivered",
			logx.Int("parts", len(parts)), logx.Int("recipients", len(p.cfg.Recipients)))
	} else {
		res.Err = fmt.Errorf("delivery incomplete: %d of %d recipients failed",
			len(res.Failed), len(p.cfg.Recipients))
	}
	return res
}

func (p *Pipeline) composeMessage(nl *fetch.Newsletter, summary string) string {
	return fmt.Sprintf("<b>AI Briefing - TLDR %s</b>\n\n%s\n\n<a href=\"%s\">Source newsletter</a>",
		nl.Date, summary, nl.URL)
}

// deliverAll fans out to every recipient concurrently; within one recipient
// the parts go out strictly in order. Returns the recipients that failed.
//
// Partial delivery leaves the date unmarked, so the next run re-sends to
// everyone. Recipients that already succeeded get a duplicate; that is the
// accepted cost of not tracking per-recipient state.
func (p *Pipeline) deliverAll(ctx context.Context, parts []string, log logx.Logger) []int64 {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []int64
	)
	for _, chatID := range p.cfg.Recipients {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if err := p.sender.SendParts(ctx, id, parts); err != nil {
				log.Warn("recipient delivery failed", logx.Int64("chat_id", id), logx.Err(err))
				mu.Lock()
				failed = append(failed, id)
				mu.Unlock()
			}
		}(chatID)
	}
	wg.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}
