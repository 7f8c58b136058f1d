// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package sat produces the SAT question of the day from a local question
// bank.
package sat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/learning/dailypush/internal/content"
)

// Fallback is rendered when no question could be picked.
const Fallback = "📘 SAT 每日一题: " + content.NoData + "\n"

// ErrEmptyBank is returned when the question bank has no questions.
var ErrEmptyBank = errors.New("question bank is empty")

// choiceKeys are the rendered answer choices, in order.
var choiceKeys = []string{"A", "B", "C", "D"}

// Question is one record of the question bank.
type Question struct {
	// Category is the bank section the question was loaded from.
	Category   string `json:"-"`
	Domain     string `json:"domain"`
	Difficulty string `json:"difficulty"`
	Question   struct {
		Question      string            `json:"question"`
		Choices       map[string]string `json:"choices"`
		CorrectAnswer string            `json:"correct_answer"`
		Explanation   string            `json:"explanation"`
	} `json:"question"`
}

// Bank is a question bank: a JSON object mapping category names to lists of
// questions. Categories keep the order of the document.
type Bank struct {
	Categories []string
	Questions  []Question
}

// LoadBank reads the question bank from the file at path.
func LoadBank(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := ParseBank(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ParseBank parses a question bank from r.
func ParseBank(r io.Reader) (*Bank, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	b := new(Bank)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		category, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var qs []Question
		if err := dec.Decode(&qs); err != nil {
			return nil, fmt.Errorf("category %q: %w", category, err)
		}
		for i := range qs {
			qs[i].Category = category
		}
		b.Categories = append(b.Categories, category)
		b.Questions = append(b.Questions, qs...)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return b, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("want %v, got %v", want, tok)
	}
	return nil
}

// Pick returns a question chosen with intn, which must behave like
// rand.IntN.
func (b *Bank) Pick(intn func(int) int) (Question, error) {
	if len(b.Questions) == 0 {
		return Question{}, ErrEmptyBank
	}
	return b.Questions[intn(len(b.Questions))], nil
}

// Format renders q as the SAT section, converting LaTeX markup to text.
func Format(q Question, now time.Time) string {
	domain := q.Domain
	if domain == "" {
		domain = "未知分类"
	}
	difficulty := q.Difficulty
	if difficulty == "" {
		difficulty = "未知难度"
	}

	var sb strings.Builder
	sb.WriteString("📘 SAT 每日一题  |  更新时间: " + now.Format(time.DateTime) + "\n")
	sb.WriteString(strings.Repeat("=", 27) + "\n")
	sb.WriteString("📚 分类: " + domain + "\n")
	sb.WriteString("💡 难度: " + difficulty + "\n")
	sb.WriteString(strings.Repeat("-", 52) + "\n")
	sb.WriteString("📝 题目：\n" + LatexToText(q.Question.Question) + "\n")
	for _, k := range choiceKeys {
		sb.WriteString("  " + k + ". " + LatexToText(q.Question.Choices[k]) + "\n")
	}
	sb.WriteString(strings.Repeat("-", 52) + "\n")
	sb.WriteString("✅ 正确答案: " + content.Or(q.Question.CorrectAnswer) + "\n")
	sb.WriteString("🧩 解析: " + content.Or(LatexToText(q.Question.Explanation)) + "\n")
	return sb.String()
}

// Producer picks a random question from the bank file.
type Producer struct {
	// Path is the question bank file.
	Path string
	// IntN defaults to rand.IntN.
	IntN func(int) int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Produce implements [content.Producer].
func (p *Producer) Produce(ctx context.Context) (string, error) {
	b, err := LoadBank(p.Path)
	if err != nil {
		return "", err
	}
	intn := p.IntN
	if intn == nil {
		intn = rand.IntN
	}
	q, err := b.Pick(intn)
	if err != nil {
		return "", err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Format(q, now()), nil
}
