// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package sat

import (
	"testing"

	"github.com/learning/dailypush/internal/testutil"
)

func TestLatexToText(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in, want string
	}{
		"fraction":            {`\frac{1}{2}`, "1/2"},
		"inline math":         {`$x$`, "x"},
		"display math":        {`$$a+b$$`, "a+b"},
		"fraction in math":    {`$\frac{a}{b}$`, "a/b"},
		"square root":         {`\sqrt{16}`, "sqrt(16)"},
		"products":            {`3 \cdot 4 \times 5`, "3 * 4 * 5"},
		"relations":           {`x \le 5 \ge 2 \neq 3 \approx 4`, "x <= 5 >= 2 != 3 approx 4"},
		"pi":                  {`2\pi r`, "2pi r"},
		"spacing":             {`a\,b\;c`, "a b c"},
		"parens":              {`\left(x+1\right)`, "(x+1)"},
		"leftover backslash":  {`\alpha + \beta`, "alpha + beta"},
		"leq keeps its tail":  {`x \leq 3`, "x <=q 3"},
		"plain text":          {"What is the value of x?", "What is the value of x?"},
		"two inline formulas": {`If $y=2$ and $z=3$`, "If y=2 and z=3"},
		"nested braces":       {`\frac{x^{2}}{3}`, "frac{x^{2}}{3}"},
		"empty":               {"", ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, LatexToText(tc.in), tc.want)
		})
	}
}
