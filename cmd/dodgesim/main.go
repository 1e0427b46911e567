package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/dodgesim/internal/config"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
	"github.com/zeusync/dodgesim/internal/core/rollout"
	"github.com/zeusync/dodgesim/internal/injector"
)

const usage = `usage: dodgesim <command> [flags]

commands:
  serve     host environments over websocket
  rollout   play episodes offline with a scripted policy
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(ctx, os.Args[2:])
	case "rollout":
		err = runRollout(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "dodgesim:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	path := fs.String("config", "", "YAML config file (defaults when empty)")
	addr := fs.String("addr", "", "listen address, overrides server.listen_addr")
	watch := fs.Bool("watch", false, "reload arena settings when the config file changes")
	_ = fs.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}

	app := injector.InitializeServer(cfg)
	defer func() { _ = app.Logger.Sync() }()

	if err := app.Server.Start(ctx); err != nil {
		return err
	}
	defer app.Server.Close()

	if *watch && *path != "" {
		w, err := config.NewWatcher(*path, config.DefaultDebounce)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer w.Close()
		go reload(ctx, w, app)
	}

	<-ctx.Done()
	app.Logger.Info("Shutdown signal received")

	shutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return app.Server.Stop(shutdown)
}

func reload(ctx context.Context, w *config.Watcher, app *injector.ServerApp) {
	for {
		select {
		case cfg, ok := <-w.Updates:
			if !ok {
				return
			}
			if lvl := cfg.Level(); lvl != app.Logger.GetLevel() {
				app.Logger.SetLevel(lvl)
			}
			if err := app.Server.Reconfigure(cfg.Env); err != nil {
				app.Logger.Warn("Config reload rejected", log.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			app.Logger.Warn("Config reload failed", log.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func runRollout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rollout", flag.ExitOnError)
	path := fs.String("config", "", "YAML config file (defaults when empty)")
	episodes := fs.Int("episodes", 0, "episodes to play, overrides rollout.episodes")
	workers := fs.Int("workers", -1, "parallel episodes, overrides rollout.workers (0 = GOMAXPROCS)")
	policy := fs.String("policy", "", "random or evasive, overrides rollout.policy")
	out := fs.String("out", "", "msgpack trajectory file, overrides rollout.output")
	_ = fs.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	if *episodes > 0 {
		cfg.Rollout.Episodes = *episodes
	}
	if *workers >= 0 {
		cfg.Rollout.Workers = *workers
	}
	if *policy != "" {
		cfg.Rollout.Policy = *policy
	}
	if *out != "" {
		cfg.Rollout.Output = *out
	}

	var (
		rec *rollout.Recorder
		buf *bufio.Writer
	)
	if cfg.Rollout.Output != "" {
		f, err := os.Create(cfg.Rollout.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		buf = bufio.NewWriter(f)
		rec = rollout.NewRecorder(buf)
	}

	app, err := injector.InitializeRollout(cfg, rec)
	if err != nil {
		return err
	}
	defer func() { _ = app.Logger.Sync() }()

	sum, err := app.Runner.Run(ctx)
	if err != nil {
		return err
	}
	if buf != nil {
		if err := buf.Flush(); err != nil {
			return fmt.Errorf("write trajectories: %w", err)
		}
	}

	sum.Results = nil
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
