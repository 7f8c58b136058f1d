// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"flag"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/learning/dailypush/internal/cli"
	"github.com/learning/dailypush/internal/cli/clitest"
	"github.com/learning/dailypush/internal/config"
	"github.com/learning/dailypush/internal/testutil"
)

var fixedNow = time.Date(2025, 10, 6, 1, 0, 0, 0, time.UTC)

// Typical Telegram Bot API token, copied from docs.
const tgToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

var senderEnv = map[string]string{
	config.TelegramBotToken: tgToken,
	config.TelegramChatID:   "-100123",
	config.WeComCorpID:      "ww0123456789",
	config.WeComAgentID:     "1000002",
	config.WeComSecret:      "wecom-secret",
}

func weatherEnv(t *testing.T) map[string]string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]string{
		config.WeatherKeyID:      "KEY123",
		config.WeatherProjectID:  "PROJ456",
		config.WeatherPrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		config.WeatherAPIHost:    "api.qweather.test",
		config.WeatherLocation:   "101010100",
		config.CityName:          "北京",
	}
}

func merge(maps ...map[string]string) map[string]string {
	m := make(map[string]string)
	for _, mm := range maps {
		for k, v := range mm {
			m[k] = v
		}
	}
	return m
}

// fake serves every upstream API the runners talk to.
type fake struct {
	mux *http.ServeMux

	mu             sync.Mutex
	telegram       []string
	wecom          []string
	telegramStatus int
}

func newFake(t *testing.T) *fake {
	t.Helper()
	f := &fake{mux: http.NewServeMux()}

	f.mux.HandleFunc("GET zenquotes.io/api/today", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"q":"Well begun is half done.","a":"Aristotle"}]`))
	})
	f.mux.HandleFunc("GET api.mymemory.translated.net/get", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responseData":{"translatedText":"良好的开端是成功的一半。"}}`))
	})
	f.mux.HandleFunc("GET www.bbc.com/news", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<main id="main-content"><a href="/news/articles/c1">Markets rally</a></main>`))
	})
	f.mux.HandleFunc("GET www.bbc.com/news/articles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<article><h1>Markets rally</h1><p>Stocks rose on Monday.</p><p>By Jane Doe</p></article>`))
	})
	f.mux.HandleFunc("GET api.qweather.test/v7/weather/now", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"code":"200","now":{"text":"多云","temp":"21","feelsLike":"20"}}`))
	})
	f.mux.HandleFunc("GET api.qweather.test/v7/air/now", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"200","now":{"aqi":"42","category":"优","primary":"NA"}}`))
	})
	f.mux.HandleFunc("POST api.telegram.org/{bot}/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decoding telegram message: %v", err)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.telegramStatus != 0 {
			w.WriteHeader(f.telegramStatus)
			return
		}
		f.telegram = append(f.telegram, msg.Text)
		w.Write([]byte(`{"ok":true}`))
	})
	f.mux.HandleFunc("GET qyapi.weixin.qq.com/cgi-bin/gettoken", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errcode":0,"errmsg":"ok","access_token":"wecom-token","expires_in":7200}`))
	})
	f.mux.HandleFunc("POST qyapi.weixin.qq.com/cgi-bin/message/send", func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decoding wecom message: %v", err)
		}
		f.mu.Lock()
		f.wecom = append(f.wecom, msg.Text.Content)
		f.mu.Unlock()
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	})

	return f
}

func (f *fake) sent() (telegram, wecom []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.telegram...), append([]string(nil), f.wecom...)
}

func testApp(f *fake) *app {
	return &app{
		httpc: testutil.MockHTTPClient(f.mux),
		now:   func() time.Time { return fixedNow },
		intn:  func(int) int { return 0 },
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	wenv := weatherEnv(t)

	clitest.Run(t, func(t *testing.T) *app {
		return testApp(newFake(t))
	}, map[string]clitest.Case[*app]{
		"prints usage with help flag": {
			Args:    []string{"-h"},
			WantErr: flag.ErrHelp,
		},
		"version": {
			Args:    []string{"-version"},
			WantErr: cli.ErrExitVersion,
		},
		"no command": {
			Args:         []string{},
			WantErr:      cli.ErrInvalidArgs,
			WantInStderr: "Available flags",
		},
		"unknown command": {
			Args:    []string{"-dry", "weekly"},
			WantErr: cli.ErrInvalidArgs,
		},
		"missing sender configuration": {
			Args:    []string{"lunar"},
			WantErr: config.ErrMissing,
		},
		"weather needs its configuration": {
			Args:    []string{"-dry", "weather"},
			WantErr: config.ErrMissing,
		},
		"lunar": {
			Args:         []string{"-dry", "lunar"},
			WantInStdout: "日期: 2025-10-06\n",
		},
		"command is case-insensitive": {
			Args:         []string{"-dry", "LUNAR"},
			WantInStdout: "八月十五",
		},
		"sat": {
			Args:         []string{"-dry", "sat"},
			Env:          map[string]string{config.QuestionFile: "testdata/questions.json"},
			WantInStdout: "  C. 5/2\n",
		},
		"sat without a question bank": {
			Args:         []string{"-dry", "sat"},
			Env:          map[string]string{config.QuestionFile: "testdata/missing.json"},
			WantInStdout: "📘 SAT 每日一题: 无数据\n",
		},
		"news": {
			Args:         []string{"-dry", "news"},
			WantInStdout: "📰 标题: Markets rally\n🔗 链接: https://www.bbc.com/news/articles/c1\n",
		},
		"quote": {
			Args:         []string{"-dry", "quote"},
			WantInStdout: "中文: 良好的开端是成功的一半。",
		},
		"weather": {
			Args:         []string{"-dry", "weather"},
			Env:          wenv,
			WantInStdout: "======== 北京 =======\n⛅ 天气: 多云\n",
		},
		"daily without weather configuration": {
			Args:         []string{"-dry", "daily"},
			Env:          map[string]string{config.QuestionFile: "testdata/questions.json"},
			WantInStdout: "\n❌ 获取天气失败\n🌞 每日一句",
		},
		"verbose logs requests": {
			Args:         []string{"-dry", "-verbose", "quote"},
			WantInStderr: "zenquotes.io",
		},
		"verbose delivery hides secrets": {
			Args:            []string{"-verbose", "quote"},
			Env:             senderEnv,
			WantInStderr:    "api.telegram.org",
			WantNotInOutput: []string{tgToken, senderEnv[config.WeComSecret]},
		},
	})
}

func run(t *testing.T, a *app, env map[string]string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := cli.Run(cli.WithEnv(context.Background(), &cli.Env{
		Args:   args,
		Getenv: func(key string) string { return env[key] },
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	}), a)
	return stdout.String(), err
}

func TestDailyDelivery(t *testing.T) {
	t.Parallel()

	f := newFake(t)
	env := merge(senderEnv, weatherEnv(t), map[string]string{config.QuestionFile: "testdata/questions.json"})

	out, err := run(t, testApp(f), env, "daily")
	if err != nil {
		t.Fatal(err)
	}

	wantOrder := []string{
		"======== 北京 =======\n日期: 2025-10-06\n",
		"⛅ 天气: 多云\n",
		"🌞 每日一句",
		"📘 SAT 每日一题",
	}
	last := -1
	for _, s := range wantOrder {
		i := strings.Index(out, s)
		if i <= last {
			t.Fatalf("%q is missing or out of order in:\n%s", s, out)
		}
		last = i
	}

	telegram, wecom := f.sent()
	testutil.AssertEqual(t, telegram, []string{out})
	testutil.AssertEqual(t, wecom, []string{out})
}

func TestTelegramFailureDoesNotBlockWeCom(t *testing.T) {
	t.Parallel()

	f := newFake(t)
	f.telegramStatus = http.StatusInternalServerError

	out, err := run(t, testApp(f), senderEnv, "lunar")
	if err != nil {
		t.Fatal(err)
	}

	telegram, wecom := f.sent()
	testutil.AssertEqual(t, len(telegram), 0)
	testutil.AssertEqual(t, wecom, []string{out})
}
