package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/metrics"
	"github.com/orgloop/orgloop/internal/module"
	"github.com/orgloop/orgloop/internal/runtime"
)

func createRunCommand() *cobra.Command {
	var modulePaths []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load module configs and start the routing runtime",
		Long:  "orgloop run --module modules/slack.json --module modules/github.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuntime(cmd.Context(), modulePaths)
		},
	}
	cmd.Flags().StringArrayVar(&modulePaths, "module", nil, "path to a module config JSON file, repeatable")
	return cmd
}

func runRuntime(ctx context.Context, modulePaths []string) error {
	rt, stopMetrics, err := buildRuntime()
	if err != nil {
		return err
	}
	defer stopMetrics()

	for _, path := range modulePaths {
		cfg, err := loadModuleFile(path)
		if err != nil {
			return fmt.Errorf("orgloop run: %w", err)
		}
		if _, err := rt.LoadModule(ctx, cfg, module.Resources{}); err != nil {
			return fmt.Errorf("orgloop run: load module %q: %w", cfg.Name, err)
		}
	}

	return startAndWait(ctx, rt)
}

func loadModuleFile(path string) (config.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Module{}, err
	}
	var cfg config.Module
	if err := json.Unmarshal(data, &cfg); err != nil {
		return config.Module{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Dir == "" {
		abs, err := filepath.Abs(filepath.Dir(path))
		if err == nil {
			cfg.Dir = abs
		}
	}
	return cfg, nil
}

func buildRuntime() (*runtime.Runtime, func(), error) {
	host := viper.GetString("host")
	port := viper.GetString("port")
	addr := fmt.Sprintf("%s:%s", host, port)

	m := metrics.New()
	stop := startMetricsListener(m)

	rt := runtime.New(runtime.Options{
		HTTPAddr: addr,
		Metrics:  m,
		Logger:   slog.Default(),
	})
	return rt, stop, nil
}

// startMetricsListener starts a dedicated /metrics listener when
// ORGLOOP_METRICS_PORT (or --metrics-port) is set, kept separate from
// the loopback webhook/control surface per §6.
func startMetricsListener(m *metrics.Metrics) func() {
	port := viper.GetString("metrics_port")
	if port == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return func() { _ = srv.Close() }
}

func startAndWait(ctx context.Context, rt *runtime.Runtime) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	return rt.RunGuarded(runCtx, func(ctx context.Context) error {
		if err := rt.Start(ctx); err != nil {
			return err
		}
		rt.StartHeartbeat(resolveHeartbeatPath(), ctx.Done())
		removePID := writeRuntimePID()
		defer removePID()

		listenSignals(cancel)
		<-ctx.Done()

		return rt.Stop(context.Background())
	})
}

// resolveHeartbeatPath honors an explicit --heartbeat-file, otherwise
// falls back to the default ~/.orgloop/heartbeat when --daemon (or
// ORGLOOP_DAEMON) is set, and disables the heartbeat entirely otherwise.
func resolveHeartbeatPath() string {
	if path := viper.GetString("heartbeat_file"); path != "" {
		return path
	}
	if !viper.GetBool("daemon") {
		return ""
	}
	return filepath.Join(orgloopHome(), "heartbeat")
}

// writeRuntimePID writes this process's pid to ~/.orgloop/orgloop.pid,
// returning a cleanup func that removes it on stop. Best-effort: a
// failure here never blocks the runtime from starting.
func writeRuntimePID() func() {
	path := filepath.Join(orgloopHome(), "orgloop.pid")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return func() {}
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return func() {}
	}
	return func() { _ = os.Remove(path) }
}

func orgloopHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".orgloop"
	}
	return filepath.Join(home, ".orgloop")
}
