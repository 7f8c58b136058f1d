// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/google/uuid"

	"github.com/learning/dailypush/internal/logger"
	"github.com/learning/dailypush/internal/util/syncx"
)

// Job is one launch of a runner.
type Job struct {
	ID      string
	Command string
	Argv    []string
	Started time.Time
}

func newJob(r *Rule, now time.Time) Job {
	return Job{
		ID:      uuid.NewString(),
		Command: r.Command,
		Argv:    r.Argv,
		Started: now,
	}
}

func (j Job) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("job", j.ID),
		slog.String("command", j.Command),
		slog.String("cmdline", shellescape.QuoteCommand(j.Argv)),
		slog.Time("started", j.Started),
	}
}

// Spawner launches jobs in the background.
type Spawner interface {
	// Spawn starts job and returns without waiting for it to finish.
	Spawn(ctx context.Context, job Job) error
}

// ExecSpawner runs jobs as child processes. The processes are neither
// limited nor supervised; they outlive the request that started them and
// keep running after the server shuts down.
type ExecSpawner struct {
	// Dir is the working directory of the processes.
	Dir string
	// Env is the environment of the processes. If nil, the current
	// environment is used.
	Env []string
	// Stdout and Stderr receive the output of the processes. If nil, it is
	// discarded.
	Stdout, Stderr io.Writer

	running syncx.Map[string, Job]
}

var errEmptyArgv = errors.New("empty argv")

// Spawn implements [Spawner].
func (s *ExecSpawner) Spawn(ctx context.Context, job Job) error {
	if len(job.Argv) == 0 {
		return errEmptyArgv
	}

	cmd := exec.Command(job.Argv[0], job.Argv[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = s.Env
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	s.running.Store(job.ID, job)

	l := logger.Get(ctx)
	go func() {
		err := cmd.Wait()
		s.running.Delete(job.ID)
		attrs := append(job.attrs(),
			slog.Int("pid", cmd.Process.Pid),
			slog.Duration("took", time.Since(job.Started)),
		)
		if err != nil {
			attrs = append(attrs, slog.Any("err", err))
			l.LogAttrs(context.Background(), slog.LevelWarn, "job failed", attrs...)
			return
		}
		l.LogAttrs(context.Background(), slog.LevelInfo, "job finished", attrs...)
	}()
	return nil
}

// Running returns the jobs that have not exited yet.
func (s *ExecSpawner) Running() []Job {
	var jobs []Job
	s.running.Range(func(_ string, j Job) bool {
		jobs = append(jobs, j)
		return true
	})
	return jobs
}
