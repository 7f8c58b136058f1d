// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Rule maps a chat command to the argv of a runner.
type Rule struct {
	Command string
	Argv    []string
}

func (r *Rule) String() string        { return fmt.Sprintf("<command %q>", r.Command) }
func (r *Rule) Type() string          { return "command" }
func (r *Rule) Freeze()               {} // immutable
func (r *Rule) Truth() starlark.Bool  { return starlark.Bool(r.Command != "") }
func (r *Rule) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", r.Type()) }

// Table is the command-to-action mapping. It is not modified after
// construction.
type Table []*Rule

// DefaultTable returns the built-in mapping that runs the dailypush binary
// at runner.
func DefaultTable(runner string) Table {
	return Table{
		{Command: "start", Argv: []string{runner, "daily"}},
		{Command: "sat", Argv: []string{runner, "sat"}},
		{Command: "bbc", Argv: []string{runner, "news"}},
	}
}

// Match returns every rule whose command equals content, ignoring case and
// surrounding whitespace. Rules are checked independently, so several rules
// with the same command all match.
func (t Table) Match(content string) []*Rule {
	content = strings.ToLower(strings.TrimSpace(content))
	if content == "" {
		return nil
	}
	var matched []*Rule
	for _, r := range t {
		if strings.ToLower(r.Command) == content {
			matched = append(matched, r)
		}
	}
	return matched
}

// LoadTable reads a Starlark command table from the file at path. See
// [ParseTable] for the format.
func LoadTable(path, runner string, logger *slog.Logger) (Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTable(path, src, runner, logger)
}

// ParseTable evaluates a Starlark command table. The program must define a
// list named commands built with the command builtin:
//
//	commands = [
//	    command(name = "start", argv = [runner, "daily"]),
//	    command(name = "nba", argv = ["/usr/local/bin/nba"]),
//	]
//
// runner is predeclared as the path of the dailypush binary. Output of print
// goes to logger.
func ParseTable(filename string, src []byte, runner string, logger *slog.Logger) (Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{},
		&starlark.Thread{
			Name:  "commands",
			Print: func(_ *starlark.Thread, msg string) { logger.Info(msg, slog.String("file", filename)) },
		},
		filename,
		src,
		starlark.StringDict{
			"command": starlark.NewBuiltin("command", commandBuiltin),
			"runner":  starlark.String(runner),
		},
	)
	if err != nil {
		return nil, err
	}

	list, ok := globals["commands"].(*starlark.List)
	if !ok {
		return nil, errors.New("commands must be defined and be a list")
	}

	var t Table
	for i := range list.Len() {
		r, ok := list.Index(i).(*Rule)
		if !ok {
			return nil, fmt.Errorf("commands[%d]: want command, got %s", i, list.Index(i).Type())
		}
		t = append(t, r)
	}
	if len(t) == 0 {
		return nil, errors.New("commands is empty")
	}
	return t, nil
}

func commandBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name string
		argv *starlark.List
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name,
		"argv", &argv,
	); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: name must not be empty", b.Name())
	}
	if argv.Len() == 0 {
		return nil, fmt.Errorf("%s %q: argv must not be empty", b.Name(), name)
	}

	r := &Rule{Command: name}
	for i := range argv.Len() {
		s, ok := starlark.AsString(argv.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s %q: argv[%d] is %s, want string", b.Name(), name, i, argv.Index(i).Type())
		}
		r.Argv = append(r.Argv, s)
	}
	return r, nil
}
