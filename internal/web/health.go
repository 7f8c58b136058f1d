// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/learning/dailypush/internal/util/syncx"
	"github.com/learning/dailypush/internal/version"
)

// Health returns the [HealthHandler] registered on mux at /health, creating it
// if necessary.
func Health(mux *http.ServeMux) *HealthHandler {
	h, pat := mux.Handler(&http.Request{URL: &url.URL{Path: "/health"}})
	if hh, ok := h.(*HealthHandler); ok && pat == "/health" {
		return hh
	}
	ret := &HealthHandler{
		checks:  syncx.Protect(make(checksMap)),
		started: time.Now(),
		now:     time.Now,
	}
	mux.Handle("/health", ret)
	return ret
}

// HealthHandler reports the state of the service and its registered checks.
type HealthHandler struct {
	checks  *syncx.Protected[checksMap]
	started time.Time
	now     func() time.Time
}

type checksMap = map[string]HealthFunc

// HealthFunc reports the state of one subsystem. It must be safe for
// concurrent use.
type HealthFunc func() (status string, ok bool)

// RegisterFunc adds a check under name. It panics if name is taken.
func (h *HealthHandler) RegisterFunc(name string, f HealthFunc) {
	h.checks.Access(func(checks checksMap) {
		if _, dup := checks[name]; dup {
			panic("health: health check function with this name already exists")
		}
		checks[name] = f
	})
}

// HealthResponse is the body of the /health endpoint.
type HealthResponse struct {
	OK      bool                     `json:"ok"`
	Version string                   `json:"version"`
	Uptime  string                   `json:"uptime"`
	Checks  map[string]CheckResponse `json:"checks"`
}

// CheckResponse is the result of a single check.
type CheckResponse struct {
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

// ServeHTTP implements the [http.Handler] interface. The status code is 500
// if any check fails.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v := version.Version()
	hr := &HealthResponse{
		OK:      true,
		Version: v.Name + " " + v.Version,
		Uptime:  h.now().Sub(h.started).Truncate(time.Second).String(),
		Checks:  make(map[string]CheckResponse),
	}

	h.checks.RAccess(func(checks checksMap) {
		for name, f := range checks {
			status, ok := f()
			if !ok {
				hr.OK = false
			}
			hr.Checks[name] = CheckResponse{Status: status, OK: ok}
		}
	})

	if !hr.OK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
	}
	RespondJSON(w, hr)
}
