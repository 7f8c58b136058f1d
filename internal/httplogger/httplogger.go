// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package httplogger provides a http.RoundTripper middleware that logs
// outgoing HTTP requests and their outcome.
package httplogger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// New returns an http.RoundTripper that logs every request made through t at
// the debug level. Scrubber, if not nil, is applied to request URLs before
// they are logged.
func New(t http.RoundTripper, l *slog.Logger, scrubber *strings.Replacer) http.RoundTripper {
	if t == nil {
		t = http.DefaultTransport
	}
	if l == nil {
		l = slog.Default()
	}
	return &loggingTransport{transport: t, logger: l, scrubber: scrubber}
}

type loggingTransport struct {
	transport http.RoundTripper
	logger    *slog.Logger
	scrubber  *strings.Replacer
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.transport.RoundTrip(r)

	u := r.URL.String()
	if t.scrubber != nil {
		u = t.scrubber.Replace(u)
	}
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("url", u),
		slog.Duration("took", time.Since(start)),
	}
	if resp != nil {
		attrs = append(attrs, slog.Int("status", resp.StatusCode))
	}
	if err != nil {
		msg := err.Error()
		if t.scrubber != nil {
			msg = t.scrubber.Replace(msg)
		}
		attrs = append(attrs, slog.String("err", msg))
		t.logger.LogAttrs(r.Context(), slog.LevelWarn, "HTTP request failed", attrs...)
		return resp, err
	}
	t.logger.LogAttrs(r.Context(), slog.LevelDebug, "HTTP request", attrs...)
	return resp, nil
}
