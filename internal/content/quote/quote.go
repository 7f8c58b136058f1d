// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package quote produces the quote of the day with a Chinese translation.
package quote

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/learning/dailypush/internal/content"
	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/request"
)

// Default endpoints.
const (
	DefaultQuoteURL     = "https://zenquotes.io/api/today"
	DefaultTranslateURL = "https://api.mymemory.translated.net/get"
)

// Quote is a quote of the day.
type Quote struct {
	Text        string
	Author      string
	Translation string
}

// Producer fetches the quote of the day and translates it. Failures of the
// quote and translation services degrade to placeholders independently, so
// Produce never fails.
type Producer struct {
	// QuoteURL defaults to DefaultQuoteURL.
	QuoteURL string
	// TranslateURL defaults to DefaultTranslateURL.
	TranslateURL string
	// HTTPClient defaults to request.DefaultClient.
	HTTPClient *http.Client
}

// Produce implements [content.Producer].
func (p *Producer) Produce(ctx context.Context) (string, error) {
	return Format(p.Fetch(ctx)), nil
}

// Fetch returns the quote of the day. Missing parts are left empty.
func (p *Producer) Fetch(ctx context.Context) Quote {
	var q Quote

	text, author, err := p.today(ctx)
	if err != nil {
		logger.Warn(ctx, "fetching quote failed", slog.Any("err", err))
		return q
	}
	q.Text, q.Author = text, author

	q.Translation, err = p.translate(ctx, text)
	if err != nil {
		logger.Warn(ctx, "translating quote failed", slog.Any("err", err))
	}
	return q
}

func (p *Producer) today(ctx context.Context) (text, author string, err error) {
	quotes, err := request.Make[[]struct {
		Q string `json:"q"`
		A string `json:"a"`
	}](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        cmp.Or(p.QuoteURL, DefaultQuoteURL),
		HTTPClient: p.HTTPClient,
	})
	if err != nil {
		return "", "", err
	}
	if len(quotes) == 0 || strings.TrimSpace(quotes[0].Q) == "" {
		return "", "", errors.New("empty quote response")
	}
	return strings.TrimSpace(quotes[0].Q), strings.TrimSpace(quotes[0].A), nil
}

func (p *Producer) translate(ctx context.Context, text string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", "en|zh-CN")

	resp, err := request.Make[struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        cmp.Or(p.TranslateURL, DefaultTranslateURL) + "?" + q.Encode(),
		HTTPClient: p.HTTPClient,
	})
	if err != nil {
		return "", err
	}
	if resp.ResponseData.TranslatedText == "" {
		return "", errors.New("empty translation")
	}
	return resp.ResponseData.TranslatedText, nil
}

// Format renders q as the quote section.
func Format(q Quote) string {
	var sb strings.Builder
	sb.WriteString("🌞 每日一句\n\n")
	sb.WriteString("英文: " + content.Or(q.Text) + "\n\n")
	sb.WriteString("中文: " + content.Or(q.Translation) + "\n\n")
	sb.WriteString("作者: " + content.Or(q.Author) + "\n\n")
	return sb.String()
}
