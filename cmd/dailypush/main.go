// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/learning/dailypush/internal/cli"
	"github.com/learning/dailypush/internal/config"
	"github.com/learning/dailypush/internal/content"
	"github.com/learning/dailypush/internal/content/lunar"
	"github.com/learning/dailypush/internal/content/news"
	"github.com/learning/dailypush/internal/content/quote"
	"github.com/learning/dailypush/internal/content/sat"
	"github.com/learning/dailypush/internal/content/weather"
	"github.com/learning/dailypush/internal/httplogger"
	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/notify"
	"github.com/learning/dailypush/internal/notify/telegram"
	"github.com/learning/dailypush/internal/notify/wecom"
	"github.com/learning/dailypush/internal/request"
)

func main() { cli.Main(new(app)) }

var commands = []string{"daily", "sat", "news", "weather", "quote", "lunar"}

type app struct {
	// flags
	dry        bool
	configFile string
	verbose    bool

	// initialized by Run
	cfg   *config.Config
	httpc *http.Client

	// for tests
	now  func() time.Time
	intn func(int) int
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&a.dry, "dry", false, "Print the digest without sending it.")
	fs.StringVar(&a.configFile, "config", "", "Read configuration from `file` (dotenv or YAML).")
	fs.BoolVar(&a.verbose, "verbose", false, "Log outgoing HTTP requests and other debug information.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) != 1 {
		return fmt.Errorf("%w: expected exactly one command: %s", cli.ErrInvalidArgs, strings.Join(commands, ", "))
	}
	cmd := strings.ToLower(env.Args[0])
	if !slices.Contains(commands, cmd) {
		return fmt.Errorf("%w: unknown command %q", cli.ErrInvalidArgs, env.Args[0])
	}

	cfg, err := config.Load(cmp.Or(a.configFile, env.Getenv(config.ConfigFile)), env.Getenv)
	if err != nil {
		return err
	}
	if !a.dry {
		if err := cfg.Require(config.SenderKeys...); err != nil {
			return err
		}
	}
	if cmd == "weather" {
		if err := cfg.Require(config.WeatherKeys...); err != nil {
			return err
		}
	}
	a.cfg = cfg

	l := logger.Get(ctx)
	if a.verbose {
		l.Level.Set(slog.LevelDebug)
	}
	a.initHTTPClient(l.Logger)

	text := content.Digest(ctx, a.sections(cmd)...)
	fmt.Fprint(env.Stdout, text)

	if a.dry {
		return nil
	}

	wc := wecom.New(wecom.Config{
		CorpID:     cfg.WeCom.CorpID,
		Secret:     cfg.WeCom.Secret,
		AgentID:    cfg.WeCom.AgentID,
		HTTPClient: a.httpc,
		Logger:     l.Logger,
	})
	defer wc.Close()

	senders := []notify.Sender{
		telegram.New(telegram.Config{
			ChatID:     cfg.Telegram.ChatID,
			Token:      cfg.Telegram.Token,
			HTTPClient: a.httpc,
			Scrubber:   cfg.Scrubber(),
			Logger:     l.Logger,
		}),
		wc,
	}
	if n := notify.Broadcast(ctx, text, senders...); n < len(senders) {
		logger.Warn(ctx, "digest not delivered everywhere", slog.Int("delivered", n), slog.Int("senders", len(senders)))
	}
	return nil
}

func (a *app) initHTTPClient(l *slog.Logger) {
	base := a.httpc
	if base == nil {
		base = request.DefaultClient
	}
	if !a.verbose {
		a.httpc = base
		return
	}
	a.httpc = &http.Client{
		Timeout:   base.Timeout,
		Transport: httplogger.New(base.Transport, l, a.cfg.Scrubber()),
	}
}

func (a *app) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// sections returns the digest layout of cmd.
func (a *app) sections(cmd string) []content.Section {
	switch cmd {
	case "daily":
		return []content.Section{
			{Name: "lunar", Producer: a.headerAndLunar()},
			{Name: "weather", Producer: a.weather(), Fallback: weather.Fallback},
			{Name: "quote", Producer: a.quote()},
			{Name: "sat", Producer: a.sat(), Fallback: sat.Fallback},
		}
	case "sat":
		return []content.Section{{Name: "sat", Producer: a.sat(), Fallback: sat.Fallback}}
	case "news":
		return []content.Section{{Name: "news", Producer: a.news(), Fallback: news.Fallback}}
	case "weather":
		return []content.Section{
			{Name: "header", Producer: content.Text(a.header())},
			{Name: "weather", Producer: a.weather(), Fallback: weather.Fallback},
		}
	case "quote":
		return []content.Section{{Name: "quote", Producer: a.quote()}}
	case "lunar":
		return []content.Section{{Name: "lunar", Producer: lunar.Producer{Now: a.clock}}}
	}
	return nil
}

func (a *app) header() string {
	return "======== " + a.cfg.CityName + " =======\n"
}

func (a *app) headerAndLunar() content.Producer {
	return content.ProducerFunc(func(ctx context.Context) (string, error) {
		l, err := lunar.Producer{Now: a.clock}.Produce(ctx)
		if err != nil {
			return "", err
		}
		return a.header() + l + "\n", nil
	})
}

func (a *app) weather() content.Producer {
	return content.ProducerFunc(func(ctx context.Context) (string, error) {
		if err := a.cfg.Require(config.WeatherKeys...); err != nil {
			return "", err
		}
		w := a.cfg.Weather
		p, err := weather.New(weather.Config{
			KeyID:      w.KeyID,
			ProjectID:  w.ProjectID,
			PrivateKey: w.PrivateKey,
			APIHost:    w.APIHost,
			Location:   w.Location,
			HTTPClient: a.httpc,
			Now:        a.clock,
		})
		if err != nil {
			return "", err
		}
		return p.Produce(ctx)
	})
}

func (a *app) quote() content.Producer {
	return &quote.Producer{HTTPClient: a.httpc}
}

func (a *app) sat() content.Producer {
	return &sat.Producer{Path: a.cfg.QuestionFile, IntN: a.intn, Now: a.clock}
}

func (a *app) news() content.Producer {
	return news.New(news.Config{HTTPClient: a.httpc, Now: a.clock})
}
