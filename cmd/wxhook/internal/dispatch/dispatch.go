// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package dispatch implements the WeCom callback endpoint that turns chat
// commands into runner launches.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/web"
)

// Response bodies.
const (
	ackBody          = "success"
	verifyFailedBody = "verification failed"
	decryptErrBody   = "decryption failed"
)

// maxBodySize limits callback bodies. WeCom messages are a few kilobytes.
const maxBodySize = 1 << 20

// Crypto verifies and decrypts callbacks. It is implemented by
// *wxcrypt.Crypto.
type Crypto interface {
	VerifyURL(signature, timestamp, nonce, echostr string) (string, error)
	DecryptMsg(body []byte, signature, timestamp, nonce string) ([]byte, error)
}

// Config configures a [Dispatcher].
type Config struct {
	Crypto  Crypto
	Table   Table
	Spawner Spawner
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher handles callbacks. It is safe for concurrent use.
type Dispatcher struct {
	crypto  Crypto
	table   Table
	spawner Spawner
	now     func() time.Time

	spawned   atomic.Int64
	failed    atomic.Int64
	lastError atomic.Pointer[string]
}

// New returns a new Dispatcher.
func New(c Config) *Dispatcher {
	d := &Dispatcher{
		crypto:  c.Crypto,
		table:   c.Table,
		spawner: c.Spawner,
		now:     c.Now,
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Register registers the callback handlers on mux at path, and a health
// check reporting spawn statistics.
func (d *Dispatcher) Register(mux *http.ServeMux, path string) {
	mux.HandleFunc("GET "+path, d.HandleVerify)
	mux.HandleFunc("POST "+path, d.HandleMessage)
	web.Health(mux).RegisterFunc("dispatch", d.health)
}

func (d *Dispatcher) health() (status string, ok bool) {
	status = fmt.Sprintf("%d jobs spawned, %d failed to start", d.spawned.Load(), d.failed.Load())
	if last := d.lastError.Load(); last != nil {
		status += "; last error: " + *last
	}
	return status, true
}

// HandleVerify answers the URL verification request WeCom sends when the
// callback is configured.
func (d *Dispatcher) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	echo, err := d.crypto.VerifyURL(q.Get("msg_signature"), q.Get("timestamp"), q.Get("nonce"), q.Get("echostr"))
	if err != nil {
		logger.Warn(r.Context(), "URL verification failed", slog.Any("err", err))
		web.RespondText(w, http.StatusBadRequest, verifyFailedBody)
		return
	}
	logger.Debug(r.Context(), "URL verified")
	web.RespondText(w, http.StatusOK, echo)
}

// HandleMessage decrypts a callback message and dispatches its command. It
// responds with 400 only when the message can't be decrypted.
func (d *Dispatcher) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		logger.Warn(ctx, "reading callback body failed", slog.Any("err", err))
		web.RespondText(w, http.StatusBadRequest, decryptErrBody)
		return
	}
	logger.Debug(ctx, "callback received", slog.Int("size", len(body)))

	plain, err := d.crypto.DecryptMsg(body, q.Get("msg_signature"), q.Get("timestamp"), q.Get("nonce"))
	if err != nil {
		logger.Warn(ctx, "decrypting callback failed", slog.Any("err", err))
		web.RespondText(w, http.StatusBadRequest, decryptErrBody)
		return
	}

	msg, err := ParseMessage(plain)
	if err != nil {
		logger.Error(ctx, "parsing decrypted message failed", slog.Any("err", err))
		web.RespondText(w, http.StatusOK, ackBody)
		return
	}

	d.Dispatch(ctx, msg)
	web.RespondText(w, http.StatusOK, ackBody)
}

// Dispatch launches the runners matching msg and returns the jobs that were
// started. Jobs outlive ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) []Job {
	if msg.MsgType != "text" {
		logger.Info(ctx, "ignoring non-text message", slog.String("type", msg.MsgType), slog.String("from", msg.FromUserName))
		return nil
	}
	logger.Info(ctx, "text message received", slog.String("content", msg.Content), slog.String("from", msg.FromUserName))

	rules := d.table.Match(msg.Content)
	if len(rules) == 0 {
		logger.Debug(ctx, "no command matched", slog.String("content", msg.Content))
		return nil
	}

	var jobs []Job
	for _, rule := range rules {
		job := newJob(rule, d.now())
		if err := d.spawner.Spawn(context.WithoutCancel(ctx), job); err != nil {
			d.failed.Add(1)
			errStr := err.Error()
			d.lastError.Store(&errStr)
			logger.Error(ctx, "starting job failed", append(job.attrs(), slog.Any("err", err))...)
			continue
		}
		d.spawned.Add(1)
		logger.Info(ctx, "job started", job.attrs()...)
		jobs = append(jobs, job)
	}
	return jobs
}
