// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package sat

import (
	"regexp"
	"strings"
)

var (
	fracRe        = regexp.MustCompile(`\\frac\{([^}]*)\}\{([^}]*)\}`)
	displayMathRe = regexp.MustCompile(`\$\$(.*?)\$\$`)
	inlineMathRe  = regexp.MustCompile(`\$(.*?)\$`)
	sqrtRe        = regexp.MustCompile(`\\sqrt\{([^}]*)\}`)
)

var (
	parens  = strings.NewReplacer(`\left(`, "(", `\right)`, ")")
	symbols = []*strings.Replacer{
		strings.NewReplacer(`\cdot`, "*", `\times`, "*"),
		strings.NewReplacer(`\le`, "<=", `\ge`, ">="),
		strings.NewReplacer(`\neq`, "!=", `\approx`, "approx"),
		strings.NewReplacer(`\pi`, "pi"),
		strings.NewReplacer(`\,`, " ", `\;`, " "),
		strings.NewReplacer(`\`, ""),
	}
)

// LatexToText turns the LaTeX markup used in the question bank into plain
// text readable in a chat message. Rewrites apply in a fixed order, so
// "\leq" becomes "<=q".
func LatexToText(s string) string {
	s = fracRe.ReplaceAllString(s, "${1}/${2}")
	s = parens.Replace(s)
	s = displayMathRe.ReplaceAllString(s, "${1}")
	s = inlineMathRe.ReplaceAllString(s, "${1}")
	s = sqrtRe.ReplaceAllString(s, "sqrt(${1})")
	for _, r := range symbols {
		s = r.Replace(s)
	}
	return s
}
