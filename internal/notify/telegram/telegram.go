// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram implements message delivery over the Telegram Bot API.
package telegram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/learning/dailypush/internal/notify"
	"github.com/learning/dailypush/internal/request"

	"golang.org/x/time/rate"
)

const (
	tgAPI          = "https://api.telegram.org"
	maxMessageLen  = 4096 // runes
	sendRetryLimit = 5    // N attempts to retry message sending
)

// Config configures a Telegram sender.
type Config struct {
	ChatID     string
	Token      string
	HTTPClient *http.Client
	Scrubber   *strings.Replacer
	Logger     *slog.Logger
	// BaseURL overrides the Bot API endpoint.
	BaseURL string
	// Limiter paces the messages sent to the chat. By default, bursts of
	// three messages are allowed, then one message per second.
	Limiter *rate.Limiter
}

// Sender sends messages via Telegram Bot API.
type Sender struct {
	chatID      string
	token       string
	baseURL     string
	httpc       *http.Client
	scrubber    *strings.Replacer
	slog        *slog.Logger
	limiter     *rate.Limiter
	makeRequest func(context.Context, string, any) error
	sleep       func(context.Context, time.Duration) bool
}

// New returns a Telegram sender configured for a specific chat.
func New(cfg Config) *Sender {
	s := &Sender{
		chatID:   cfg.ChatID,
		token:    cfg.Token,
		baseURL:  strings.TrimSuffix(cmp.Or(cfg.BaseURL, tgAPI), "/"),
		httpc:    cfg.HTTPClient,
		scrubber: cfg.Scrubber,
		slog:     cfg.Logger,
		limiter:  cfg.Limiter,
	}
	if s.httpc == nil {
		s.httpc = request.DefaultClient
	}
	if s.slog == nil {
		s.slog = slog.Default()
	}
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Every(time.Second), 3)
	}
	if s.scrubber == nil && s.token != "" {
		s.scrubber = strings.NewReplacer(s.token, "[EXPUNGED]")
	}
	s.makeRequest = s.makeTelegramRequest
	s.sleep = sleep
	return s
}

type message struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Name implements [notify.Sender].
func (s *Sender) Name() string { return "telegram" }

// Send sends a text message, split into chunks that fit into a single
// Telegram message, retrying requests when rate limited.
func (s *Sender) Send(ctx context.Context, text string) error {
	for _, chunk := range notify.Split(text, maxMessageLen, notify.Runes) {
		msg := &message{ChatID: s.chatID, Text: chunk}

		var err error
		for range sendRetryLimit {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			err = s.makeRequest(ctx, "sendMessage", msg)
			if err == nil {
				break
			}

			retryable, wait := isRateLimited(err)
			if !retryable {
				break
			}

			s.slog.Warn("sending rate limited, waiting", slog.String("chat_id", s.chatID), slog.Duration("wait", wait))
			if !s.sleep(ctx, wait) {
				return ctx.Err()
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) makeTelegramRequest(ctx context.Context, method string, args any) error {
	_, err := request.Make[request.IgnoreResponse](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        s.baseURL + "/bot" + s.token + "/" + method,
		Body:       args,
		HTTPClient: s.httpc,
		Scrubber:   s.scrubber,
	})
	return err
}

func isRateLimited(err error) (bool, time.Duration) {
	var statusErr *request.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		return false, 0
	}

	var errorResponse struct {
		Parameters struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(statusErr.Body, &errorResponse); err != nil {
		return false, 0
	}

	return true, time.Duration(errorResponse.Parameters.RetryAfter) * time.Second
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ notify.Sender = (*Sender)(nil)
