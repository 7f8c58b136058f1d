// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package content assembles digests from independent content producers.
package content

import (
	"context"
	"log/slog"
	"strings"

	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/util/syncx"
)

// NoData is rendered in place of values that could not be fetched.
const NoData = "无数据"

// Producer fetches or derives one piece of renderable text.
type Producer interface {
	Produce(ctx context.Context) (string, error)
}

// ProducerFunc is a function type that implements the [Producer] interface.
type ProducerFunc func(ctx context.Context) (string, error)

// Produce calls f(ctx).
func (f ProducerFunc) Produce(ctx context.Context) (string, error) { return f(ctx) }

// Text returns a Producer that always produces s.
func Text(s string) Producer {
	return ProducerFunc(func(context.Context) (string, error) { return s, nil })
}

// Section is one part of a digest.
type Section struct {
	// Name identifies the section in logs.
	Name     string
	Producer Producer
	// Fallback replaces the section text when Producer fails. If empty,
	// "<Name>: 无数据" is used.
	Fallback string
}

// maxParallel bounds the number of producers running at once.
const maxParallel = 4

// Digest runs the producers of all sections and concatenates their text in
// section order. A failing producer is logged and its fallback text takes its
// place; the other sections are unaffected.
func Digest(ctx context.Context, sections ...Section) string {
	parts := make([]string, len(sections))

	lwg := syncx.NewLimitedWaitGroup(maxParallel)
	for i, s := range sections {
		lwg.Go(func() {
			parts[i] = produce(ctx, s)
		})
	}
	lwg.Wait()

	return strings.Join(parts, "")
}

func produce(ctx context.Context, s Section) (text string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "producer panicked", slog.String("section", s.Name), slog.Any("panic", r))
			text = fallback(s)
		}
	}()

	text, err := s.Producer.Produce(ctx)
	if err != nil {
		logger.Error(ctx, "producer failed", slog.String("section", s.Name), slog.Any("err", err))
		return fallback(s)
	}
	return text
}

func fallback(s Section) string {
	if s.Fallback != "" {
		return s.Fallback
	}
	return s.Name + ": " + NoData + "\n"
}

// Or returns s, or [NoData] if s is blank.
func Or(s string) string {
	if strings.TrimSpace(s) == "" {
		return NoData
	}
	return s
}
