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
	"os"
	"path/filepath"
	"time"

	"github.com/learning/dailypush/cmd/wxhook/internal/dispatch"
	"github.com/learning/dailypush/internal/cli"
	"github.com/learning/dailypush/internal/config"
	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/systemd"
	"github.com/learning/dailypush/internal/web"
	"github.com/learning/dailypush/internal/wxcrypt"
)

func main() { cli.Main(new(app)) }

type app struct {
	// flags
	addr         string
	configFile   string
	commandsFile string
	path         string
	verbose      bool

	// for tests
	spawner dispatch.Spawner
	ready   func(addr string)
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.addr, "addr", "", "Listen on `host:port` (overrides ADDR).")
	fs.StringVar(&a.configFile, "config", "", "Read configuration from `file` (dotenv or YAML).")
	fs.StringVar(&a.commandsFile, "commands", "", "Read the command table from Starlark `file` (overrides WXHOOK_COMMANDS).")
	fs.StringVar(&a.path, "path", "/wechat_callback", "Serve the callback at `path`.")
	fs.BoolVar(&a.verbose, "verbose", false, "Log every request.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	if len(env.Args) != 0 {
		return fmt.Errorf("%w: no arguments expected", cli.ErrInvalidArgs)
	}

	l := logger.Get(ctx)
	if a.verbose {
		l.Level.Set(slog.LevelDebug)
	}

	configFile := cmp.Or(a.configFile, env.Getenv(config.ConfigFile))
	cfg, err := config.Load(configFile, env.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Require(config.ServerKeys...); err != nil {
		return err
	}

	crypto, err := wxcrypt.New(cfg.WeCom.Token, cfg.WeCom.EncodingAESKey, cfg.WeCom.CorpID)
	if err != nil {
		return fmt.Errorf("%s: %w", config.WeComAESKey, err)
	}

	table := dispatch.DefaultTable(cfg.RunnerPath)
	if file := cmp.Or(a.commandsFile, cfg.CommandsFile); file != "" {
		table, err = dispatch.LoadTable(file, cfg.RunnerPath, l.Logger)
		if err != nil {
			return fmt.Errorf("loading command table: %w", err)
		}
	}
	for _, r := range table {
		logger.Debug(ctx, "command", slog.String("name", r.Command), slog.Any("argv", r.Argv))
	}

	mux := http.NewServeMux()
	spawner := a.spawner
	if spawner == nil {
		es, err := a.execSpawner(env, configFile)
		if err != nil {
			return err
		}
		web.Health(mux).RegisterFunc("runners", func() (string, bool) {
			return fmt.Sprintf("%d running", len(es.Running())), true
		})
		spawner = es
	}

	dispatch.New(dispatch.Config{
		Crypto:  crypto,
		Table:   table,
		Spawner: spawner,
	}).Register(mux, a.path)

	sd := systemd.FromEnv(env.Getenv, l.Logf())
	stop := context.AfterFunc(ctx, func() { sd.Notify(systemd.Stopping) })
	defer stop()

	return web.ListenAndServe(ctx, &web.ListenAndServeConfig{
		Addr:       cmp.Or(a.addr, cfg.Addr),
		Mux:        mux,
		Logf:       l.Logf(),
		Middleware: logRequests,
		Ready: func(addr string) {
			sd.Notify(systemd.Ready, systemd.Status("listening on %s", addr))
			go sd.WatchdogLoop(ctx)
			if a.ready != nil {
				a.ready(addr)
			}
		},
	})
}

// execSpawner returns a spawner that starts runners with the environment of
// this process. Runners inherit the configuration file, if any.
func (a *app) execSpawner(env *cli.Env, configFile string) (*dispatch.ExecSpawner, error) {
	es := &dispatch.ExecSpawner{
		Stdout: env.Stdout,
		Stderr: env.Stderr,
	}
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return nil, err
		}
		es.Env = append(os.Environ(), config.ConfigFile+"="+abs)
	}
	return es, nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
