// Package deliver sends briefing parts over the Telegram Bot API.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "briefbot/pkg/logx"
)

type Config struct {
	Token string

	// PartsPerSec paces consecutive sends to one recipient. Telegram allows
	// bursts, but a briefing split into several parts must arrive in order
	// and spaced out, so the bucket holds a single token.
	PartsPerSec float64
	RetryMax    int
}

type Telegram struct {
	bot      *tele.Bot
	limiter  *rate.Limiter
	retryMax int
	log      logx.Logger
}

func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PartsPerSec <= 0 {
		cfg.PartsPerSec = 2
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{
		bot:      bot,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PartsPerSec), 1),
		retryMax: cfg.RetryMax,
		log:      log,
	}, nil
}

// SendParts delivers parts to one chat, strictly in order. The part sequence
// is all-or-nothing: the first part that exhausts its retries fails the call,
// and the caller treats the whole recipient as undelivered.
func (t *Telegram) SendParts(ctx context.Context, chatID int64, parts []string) error {
	for i, part := range parts {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := t.sendOne(ctx, chatID, part); err != nil {
			return fmt.Errorf("part %d/%d to %d: %w", i+1, len(parts), chatID, err)
		}
	}
	return nil
}

func (t *Telegram) sendOne(ctx context.Context, chatID int64, text string) error {
	opt := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
	chat := &tele.Chat{ID: chatID}

	var last error
	for attempt := 0; attempt <= t.retryMax; attempt++ {
		_, err := t.bot.Send(chat, text, opt)
		if err == nil {
			return nil
		}
		last = err
		if attempt == t.retryMax {
			break
		}
		delay := time.Duration(200+100*attempt) * time.Millisecond
		t.log.Debug("send retry scheduled",
			logx.Int64("chat_id", chatID), logx.Int("attempt", attempt+2),
			logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}
