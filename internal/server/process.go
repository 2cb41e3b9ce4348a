package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// Launcher spawns a language server and returns its stdio stream.
type Launcher interface {
	Launch(ctx context.Context) (io.ReadWriteCloser, error)
}

// ProcessLauncher runs the server binary as a child process speaking over
// stdin and stdout. Stderr lines go to the logger.
type ProcessLauncher struct {
	Path   string
	Args   []string
	Logger *slog.Logger
}

// Launch probes the binary and starts it. The process outlives ctx; it ends
// when the returned stream is closed.
func (l *ProcessLauncher) Launch(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := probe(l.Path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(l.Path, l.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", l.Path, err)
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("language server spawned", "path", l.Path, "pid", cmd.Process.Pid)

	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			logger.Debug("sqls", "stderr", sc.Text())
		}
	}()

	return &process{cmd: cmd, stdin: stdin, stdout: stdout, logger: logger}, nil
}

type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger *slog.Logger

	once sync.Once
}

func (p *process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close closes stdin, kills the process and reaps it.
func (p *process) Close() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		_ = p.cmd.Process.Kill()
		err := p.cmd.Wait()
		p.logger.Info("language server exited", "pid", p.cmd.Process.Pid, "status", fmt.Sprint(err))
	})
	return nil
}
