// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package notify defines how finished digests are delivered to chat
// platforms.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/learning/dailypush/internal/logger"
)

// Sender delivers a preformatted text message to one destination.
type Sender interface {
	// Name identifies the sender in logs.
	Name() string
	// Send delivers text.
	Send(ctx context.Context, text string) error
}

// Broadcast sends text through every sender in order. A failing sender is
// logged and does not prevent the next one from running. It returns the
// number of senders that succeeded.
func Broadcast(ctx context.Context, text string, senders ...Sender) int {
	var ok int
	for _, s := range senders {
		if err := s.Send(ctx, text); err != nil {
			logger.Error(ctx, "sending failed", slog.String("sender", s.Name()), slog.Any("err", err))
			continue
		}
		logger.Info(ctx, "sent", slog.String("sender", s.Name()))
		ok++
	}
	return ok
}

// Runes measures text in runes.
func Runes(rune) int { return 1 }

// Bytes measures text in UTF-8 bytes.
func Bytes(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}

// Split breaks text into chunks no larger than limit, measuring each rune
// with width. It prefers to break at the last newline, then at the last
// whitespace that fits, and never splits a rune.
func Split(text string, limit int, width func(rune) int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for text != "" {
		var (
			lastNewline    = -1
			lastWhitespace = -1
			byteCap        = len(text)
			size           int
		)

		for i, r := range text {
			w := width(r)
			if size+w > limit {
				byteCap = i
				break
			}
			size += w

			if r == '\n' {
				lastNewline = i
				continue
			}
			if unicode.IsSpace(r) {
				lastWhitespace = i
			}
		}

		if byteCap == len(text) {
			chunks = append(chunks, text)
			break
		}

		splitAt := byteCap
		switch {
		case lastNewline > 0:
			splitAt = lastNewline
		case lastWhitespace > 0:
			splitAt = lastWhitespace
		case splitAt == 0:
			// A single rune is wider than limit; send it alone.
			for i := range text {
				if i > 0 {
					splitAt = i
					break
				}
			}
			if splitAt == 0 {
				splitAt = len(text)
			}
		}

		if chunk := strings.TrimSpace(text[:splitAt]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[splitAt:])
	}

	return chunks
}
