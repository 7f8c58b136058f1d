// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"testing"

	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/testutil"
)

type flagApp struct {
	name string
	got  []string
}

func (a *flagApp) Flags(fs *flag.FlagSet) { fs.StringVar(&a.name, "name", "world", "Who to greet.") }

func (a *flagApp) Run(ctx context.Context) error {
	env := GetEnv(ctx)
	a.got = env.Args
	if len(env.Args) > 0 && env.Args[0] == "bad" {
		return fmt.Errorf("%w: bad argument", ErrInvalidArgs)
	}
	fmt.Fprintf(env.Stdout, "hello, %s", a.name)
	logger.Info(ctx, "greeted")
	return nil
}

func runApp(t *testing.T, app App, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	env := &Env{
		Args:   args,
		Getenv: func(string) string { return "" },
		Stdin:  strings.NewReader(""),
		Stdout: &outBuf,
		Stderr: &errBuf,
	}
	err = Run(WithEnv(context.Background(), env), app)
	return outBuf.String(), errBuf.String(), err
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("flags and args", func(t *testing.T) {
		app := &flagApp{}
		stdout, stderr, err := runApp(t, app, "-name", "wecom", "rest")
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, stdout, "hello, wecom")
		testutil.AssertEqual(t, app.got, []string{"rest"})
		if !strings.Contains(stderr, "msg=greeted") {
			t.Fatalf("logger is not wired to stderr: %q", stderr)
		}
	})

	t.Run("invalid args print usage", func(t *testing.T) {
		_, stderr, err := runApp(t, &flagApp{}, "bad")
		if !errors.Is(err, ErrInvalidArgs) {
			t.Fatalf("want ErrInvalidArgs, got %v", err)
		}
		if !strings.Contains(stderr, "Available flags:") {
			t.Fatalf("usage not printed: %q", stderr)
		}
	})

	t.Run("version", func(t *testing.T) {
		_, stderr, err := runApp(t, &flagApp{}, "-version")
		if !errors.Is(err, ErrExitVersion) {
			t.Fatalf("want ErrExitVersion, got %v", err)
		}
		testutil.AssertEqual(t, isPrintableError(err), false)
		if stderr == "" {
			t.Fatal("version not printed")
		}
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, _, err := runApp(t, &flagApp{}, "-nope")
		if err == nil {
			t.Fatal("want error")
		}
		testutil.AssertEqual(t, isPrintableError(err), false)
	})

	t.Run("app func", func(t *testing.T) {
		called := false
		_, _, err := runApp(t, AppFunc(func(ctx context.Context) error {
			called = true
			return nil
		}))
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, called, true)
	})
}

func TestExtractDocComment(t *testing.T) {
	t.Parallel()

	src := []byte("/*\nWxhook receives callbacks.\n\n# Usage\n*/\npackage main\n")
	testutil.AssertEqual(t, extractDocComment(src), "Wxhook receives callbacks.\n\n# Usage\n")
}

func TestGetEnvFallback(t *testing.T) {
	t.Parallel()

	if GetEnv(context.Background()).Getenv == nil {
		t.Fatal("fallback environment has no Getenv")
	}
}
