package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlbridge/internal/app"
	"github.com/joacominatel/sqlbridge/internal/config"
	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/export"
	"github.com/joacominatel/sqlbridge/internal/history"
	"github.com/joacominatel/sqlbridge/internal/logging"
	"github.com/joacominatel/sqlbridge/internal/notify"
	"github.com/joacominatel/sqlbridge/internal/server"
	"github.com/joacominatel/sqlbridge/internal/state"
	"github.com/joacominatel/sqlbridge/internal/tui"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sqlbridge:", err)
		if hint := app.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("sqlbridge", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	query := fs.StringP("query", "q", "", "run one query and print the result instead of starting the TUI")
	format := fs.StringP("format", "f", "table", "output format for --query (table, csv, json, yaml)")
	output := fs.StringP("output", "o", "", "write the --query result to a file; the extension selects the format")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.Open(cfg.Log.File, level)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	var (
		kv          state.Store
		serviceOpts []app.Option
	)
	if cfg.State.Ephemeral {
		kv = state.NewMemory()
	} else {
		db, err := state.OpenSQLite(cfg.State.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		kv = db

		hist, err := history.NewStore(db.DB())
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, app.WithHistory(hist))
	}

	var storeOpts []connstore.Option
	if cfg.State.Keyring {
		storeOpts = append(storeOpts, connstore.WithSecrets(connstore.NewKeyring(cfg.State.Prefix)))
	}
	conns := connstore.New(kv, cfg.State.Prefix, storeOpts...)
	if n, err := config.Seed(cfg, conns); err != nil {
		return fmt.Errorf("seed connections: %w", err)
	} else if n > 0 {
		logger.Info("seeded connections from config", "count", n)
	}

	oneShot := *query != ""
	bridge := &tui.Bridge{}
	var gateway *notify.Gateway
	if oneShot {
		gateway = stderrGateway(os.Stderr)
	} else {
		gateway = bridge.Gateway()
	}

	policy, err := cfg.Messages.Interceptor()
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	interceptor := notify.NewInterceptor(gateway, append(policy, notify.WithLogger(logger))...)
	interceptor.Activate()
	defer interceptor.Deactivate()

	launcher := &server.ProcessLauncher{
		Path:   binaryPath(cfg.Server, logger),
		Args:   cfg.Server.Args,
		Logger: logger,
	}
	supervisor := server.New(launcher, conns, gateway,
		server.WithLogger(logger),
		server.WithLowercaseKeywords(cfg.Server.LowercaseKeywords),
		server.WithStateObserver(bridge.ObserveState),
	)

	serviceOpts = append(serviceOpts, app.WithShowJSON(cfg.Server.ShowJSON), app.WithLogger(logger))
	service := app.NewService(supervisor, conns, cfg.Server.ScratchDir, serviceOpts...)

	ctx := context.Background()
	defer func() {
		if err := service.StopServer(ctx); err != nil {
			logger.Warn("failed to stop language server", "error", err)
		}
	}()

	if oneShot {
		return runQuery(ctx, service, *query, *format, *output)
	}

	model := tui.NewModel(service, ".")
	p := tea.NewProgram(model, tea.WithAltScreen())
	bridge.Attach(p)
	defer bridge.Close()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// binaryPath resolves the sqls binary. A missing binary is not fatal here:
// Start reports it, and the TUI stays usable for managing connections.
func binaryPath(cfg config.Server, logger *slog.Logger) string {
	if cfg.Binary != "" {
		return cfg.Binary
	}
	path, err := server.Locate(cfg.Root, runtime.GOOS, runtime.GOARCH)
	var missing *server.ExecutableMissingError
	if errors.As(err, &missing) {
		logger.Warn("sqls binary not found", "path", missing.Path)
		return missing.Path
	}
	return path
}

func stderrGateway(w io.Writer) *notify.Gateway {
	sink := func(sev notify.Severity) notify.Func {
		return func(message string, _ ...string) string {
			fmt.Fprintf(w, "%s: %s\n", sev, message)
			return ""
		}
	}
	return notify.NewGateway(
		sink(notify.SeverityError),
		sink(notify.SeverityWarning),
		// info messages would interleave with the result on a terminal
		notify.Discard,
	)
}

func runQuery(ctx context.Context, service *app.Service, query, format, output string) error {
	if err := service.StartServer(ctx); err != nil {
		return err
	}

	res, err := service.ExecuteQuery(ctx, query)
	if err != nil {
		return err
	}

	if output != "" {
		return service.Export(output, *res)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	return export.Write(os.Stdout, *res, f)
}
