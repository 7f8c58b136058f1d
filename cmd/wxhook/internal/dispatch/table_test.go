// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package dispatch

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/learning/dailypush/internal/testutil"
)

func commands(rules []*Rule) []string {
	var cmds []string
	for _, r := range rules {
		cmds = append(cmds, r.Command)
	}
	return cmds
}

func TestMatch(t *testing.T) {
	t.Parallel()

	table := DefaultTable(testRunner)
	cases := map[string]struct {
		content string
		want    []string
	}{
		"exact":       {"start", []string{"start"}},
		"upper case":  {"BBC", []string{"bbc"}},
		"mixed case":  {"SaT", []string{"sat"}},
		"whitespace":  {"\t bbc \n", []string{"bbc"}},
		"unknown":     {"nba", nil},
		"prefix only": {"starting", nil},
		"empty":       {"", nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, commands(table.Match(tc.content)), tc.want)
		})
	}
}

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	want := map[string][]string{
		"start": {testRunner, "daily"},
		"sat":   {testRunner, "sat"},
		"bbc":   {testRunner, "news"},
	}
	table := DefaultTable(testRunner)
	testutil.AssertEqual(t, len(table), len(want))
	for _, r := range table {
		testutil.AssertEqual(t, r.Argv, want[r.Command])
	}
}

func TestLoadTable(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	table, err := LoadTable(filepath.Join("testdata", "commands.star"), testRunner, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, commands(table), []string{"start", "sat", "bbc", "Weather"})
	testutil.AssertEqual(t, table.Match("weather")[0].Argv, []string{testRunner, "weather"})
	if !strings.Contains(logs.String(), "loaded 4 commands") {
		t.Errorf("print output not logged: %q", logs.String())
	}
}

func TestLoadTableMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadTable(filepath.Join(t.TempDir(), "commands.star"), testRunner, nil)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want fs.ErrNotExist, got %v", err)
	}
}

func TestParseTableErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		src     string
		wantErr string
	}{
		"syntax error": {
			src:     "commands = [",
			wantErr: "commands.star:1:",
		},
		"no commands": {
			src:     "x = 1",
			wantErr: "commands must be defined and be a list",
		},
		"commands is a dict": {
			src:     `commands = {"start": [runner, "daily"]}`,
			wantErr: "commands must be defined and be a list",
		},
		"empty list": {
			src:     "commands = []",
			wantErr: "commands is empty",
		},
		"wrong element": {
			src:     `commands = ["start"]`,
			wantErr: "commands[0]: want command, got string",
		},
		"empty name": {
			src:     `commands = [command(name = " ", argv = [runner])]`,
			wantErr: "name must not be empty",
		},
		"empty argv": {
			src:     `commands = [command(name = "start", argv = [])]`,
			wantErr: "argv must not be empty",
		},
		"non-string argv": {
			src:     `commands = [command(name = "start", argv = [runner, 1])]`,
			wantErr: "argv[1] is int, want string",
		},
		"missing argv": {
			src:     `commands = [command(name = "start")]`,
			wantErr: "missing argument for argv",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTable("commands.star", []byte(tc.src), testRunner, nil)
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
