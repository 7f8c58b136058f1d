// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package news produces the BBC headline digest.
//
// The top story is scraped from the BBC News front page. When scraping fails
// the first item of the BBC News RSS feed is used instead.
package news

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/learning/dailypush/internal/content"
	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/request"
)

// Default endpoints.
const (
	DefaultHomeURL = "https://www.bbc.com/news"
	DefaultFeedURL = "https://feeds.bbci.co.uk/news/rss.xml"
)

// Fallback is rendered when no headline could be fetched.
const Fallback = "🌐 BBC 头条新闻: " + content.NoData + "\n"

// ErrNoHeadline is returned when the front page has no headline link.
var ErrNoHeadline = errors.New("no headline link on the front page")

var boilerplate = []string{
	"Copyright",
	"BBC is not responsible",
	"Read about our approach",
}

var bylinePrefixes = []string{
	"By ",
	"With additional reporting by",
}

// Article is a scraped news story.
type Article struct {
	Title      string
	Link       string
	Paragraphs []string
	Signature  []string
}

// Config configures a [Producer].
type Config struct {
	// HomeURL is the front page to scrape. Relative article links are
	// resolved against it. Defaults to DefaultHomeURL.
	HomeURL string
	// FeedURL is the RSS feed used when scraping fails. Defaults to
	// DefaultFeedURL.
	FeedURL string
	// HTTPClient is used for outgoing requests. Defaults to
	// request.DefaultClient.
	HTTPClient *http.Client
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Producer fetches the top BBC story.
type Producer struct {
	homeURL string
	feedURL string
	httpc   *http.Client
	now     func() time.Time
}

// New returns a new Producer.
func New(c Config) *Producer {
	p := &Producer{
		homeURL: cmp.Or(c.HomeURL, DefaultHomeURL),
		feedURL: cmp.Or(c.FeedURL, DefaultFeedURL),
		httpc:   c.HTTPClient,
		now:     c.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Produce implements [content.Producer].
func (p *Producer) Produce(ctx context.Context) (string, error) {
	a, err := p.Headline(ctx)
	if err != nil {
		return "", err
	}
	return Format(a, p.now()), nil
}

// Headline returns the top story, falling back to the RSS feed.
func (p *Producer) Headline(ctx context.Context) (*Article, error) {
	a, err := p.scrape(ctx)
	if err == nil {
		return a, nil
	}
	logger.Warn(ctx, "scraping front page failed, using feed", slog.Any("err", err))

	a, feedErr := p.fromFeed(ctx)
	if feedErr != nil {
		return nil, errors.Join(err, feedErr)
	}
	return a, nil
}

func (p *Producer) get(ctx context.Context, u string) ([]byte, error) {
	return request.Make[[]byte](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        u,
		HTTPClient: p.httpc,
		Headers: map[string]string{
			"Accept-Language": "en-GB,en;q=0.9",
		},
	})
}

func (p *Producer) scrape(ctx context.Context) (*Article, error) {
	home, err := p.get(ctx, p.homeURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(home))
	if err != nil {
		return nil, fmt.Errorf("parsing front page: %w", err)
	}

	link := doc.Find("main#main-content a[href]").First()
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, ErrNoHeadline
	}
	articleURL, err := resolve(p.homeURL, href)
	if err != nil {
		return nil, err
	}

	body, err := p.get(ctx, articleURL)
	if err != nil {
		return nil, err
	}
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing article: %w", err)
	}

	a := &Article{
		Title: strings.TrimSpace(page.Find("h1").First().Text()),
		Link:  articleURL,
	}
	if a.Title == "" {
		a.Title = strings.TrimSpace(link.Text())
	}

	paras := page.Find("article p")
	if paras.Length() == 0 {
		paras = page.Find("p")
	}
	paras.Each(func(_ int, s *goquery.Selection) {
		a.add(s.Text())
	})

	return a, nil
}

func (p *Producer) fromFeed(ctx context.Context) (*Article, error) {
	b, err := p.get(ctx, p.feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, errors.New("feed has no items")
	}

	item := feed.Items[0]
	a := &Article{
		Title: strings.TrimSpace(item.Title),
		Link:  strings.TrimSpace(item.Link),
	}
	desc := item.Description
	if d, err := goquery.NewDocumentFromReader(strings.NewReader(desc)); err == nil {
		desc = d.Text()
	}
	a.add(desc)
	return a, nil
}

// add classifies a paragraph as body text or byline.
func (a *Article) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, b := range boilerplate {
		if strings.Contains(text, b) {
			return
		}
	}
	for _, prefix := range bylinePrefixes {
		if strings.HasPrefix(text, prefix) {
			a.Signature = append(a.Signature, text)
			return
		}
	}
	a.Paragraphs = append(a.Paragraphs, text)
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("bad headline link %q: %w", href, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// Format renders a as the headline digest.
func Format(a *Article, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("🌐 BBC 头条新闻  |  更新时间: " + now.Format(time.DateTime) + "\n")
	sb.WriteString(strings.Repeat("=", 27) + "\n")
	sb.WriteString("📰 标题: " + content.Or(a.Title) + "\n")
	sb.WriteString("🔗 链接: " + content.Or(a.Link) + "\n")
	sb.WriteString(strings.Repeat("-", 52) + "\n")
	sb.WriteString("📖 正文:\n\n")
	for _, p := range a.Paragraphs {
		sb.WriteString(p + "\n\n")
	}
	for _, s := range a.Signature {
		sb.WriteString(s + "\n")
	}
	return sb.String()
}
