package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/resc/api/v1beta1/configs"
	"github.com/macropower/resc/pkg/config"
	"github.com/macropower/resc/pkg/log"
	"github.com/macropower/resc/pkg/mcp"
	"github.com/macropower/resc/pkg/telemetry"
	"github.com/macropower/resc/pkg/version"
	"github.com/macropower/resc/pkg/watcher"
)

const (
	runExamples = `  # Run the watchers of the user or project configuration:
  resc

  # Use a specific configuration file:
  resc run --config ./resc.yaml

  # Expose Prometheus metrics and restart watchers when the config changes:
  resc run --metrics-address :9090 --watch-config

  # Serve MCP over HTTP, or over stdio with "-":
  resc run --serve-mcp :8080
  resc run --serve-mcp -`

	shutdownTimeout = 5 * time.Second
)

type RunArgs struct {
	*RootArgs

	MetricsAddress string
	ServeMCP       string
	HistorySize    int
	WatchConfig    bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.MetricsAddress, "metrics-address", "", "Serve Prometheus metrics at the specified address")
	cmd.Flags().StringVar(&ra.ServeMCP, "serve-mcp", "", `Serve the MCP server at the specified address, or on stdio for "-"`)
	cmd.Flags().IntVar(&ra.HistorySize, "history-size", watcher.DefaultHistorySize, "Number of recent events kept for the MCP server")
	cmd.Flags().BoolVarP(&ra.WatchConfig, "watch-config", "w", false, "Restart the watchers when the configuration file changes")
}

func NewRunCmd(ra *RunArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run all watchers until interrupted (default command)",
		Example: runExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), ra)
		},
	}
	ra.AddFlags(cmd)

	return cmd
}

// runners holds the current [watcher.Runner], which is replaced when the
// configuration is reloaded.
type runners struct {
	current atomic.Pointer[watcher.Runner]
}

func (r *runners) Watchers() []*watcher.Watcher {
	cur := r.current.Load()
	if cur == nil {
		return nil
	}

	return cur.Watchers()
}

func run(ctx context.Context, ra *RunArgs) error {
	cfg, path, err := ra.LoadConfig()
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, cmdName, telemetry.WithVersion(version.GetVersion()))
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	defer func() {
		err := shutdown(context.WithoutCancel(ctx))
		if err != nil {
			slog.Error("shutdown telemetry", slog.Any("err", err))
		}
	}()

	client, err := watcher.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis client: %w", err)
	}

	defer func() {
		err := client.Close()
		if err != nil {
			slog.Error("close redis client", slog.Any("err", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	history := watcher.NewHistory(ra.HistorySize)
	opts := []watcher.Opt{
		watcher.WithMetrics(watcher.NewMetrics(reg)),
		watcher.WithHistory(history),
	}

	var reloads <-chan *configs.Config
	if ra.WatchConfig {
		reloads, err = config.Watch(ctx, path, config.WithLoaderOpts(config.WithColor(isTerminal(os.Stderr))))
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	current := &runners{}

	g, ctx := errgroup.WithContext(ctx)

	if ra.MetricsAddress != "" {
		g.Go(func() error {
			return serveMetrics(ctx, ra.MetricsAddress, reg)
		})
	}

	if ra.ServeMCP != "" {
		srv := mcp.NewServer(ra.ServeMCP, current, history)
		g.Go(func() error {
			return srv.Serve(ctx)
		})
	}

	g.Go(func() error {
		return superviseWatchers(ctx, client, cfg, reloads, current, opts)
	})

	err = g.Wait()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return nil
}

// superviseWatchers runs the watchers of cfg, restarting them with every
// configuration received on reloads.
func superviseWatchers(
	ctx context.Context,
	client redis.UniversalClient,
	cfg *configs.Config,
	reloads <-chan *configs.Config,
	current *runners,
	opts []watcher.Opt,
) error {
	logger := log.WithContext(ctx)

	for {
		r, err := watcher.NewRunner(client, cfg, opts...)
		if err != nil {
			return fmt.Errorf("create watchers: %w", err)
		}

		current.current.Store(r)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)

		go func() {
			done <- r.Run(runCtx)
		}()

		select {
		case err := <-done:
			cancel()

			return err

		case next, ok := <-reloads:
			cancel()

			err := <-done
			if err != nil || !ok {
				return err
			}

			if next.Redis.URL != cfg.Redis.URL {
				logger.Warn("redis url changes require a restart",
					slog.String("url", cfg.Redis.URL),
				)
			}

			logger.Info("restarting watchers", slog.Int("watchers", len(next.Watchers)))

			cfg = next
		}
	}
}

func serveMetrics(ctx context.Context, address string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", watcher.Handler(g))

	server := &http.Server{
		Addr:    address,
		Handler: mux,

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx) //nolint:contextcheck // Outlives ctx.
	}()

	slog.InfoContext(ctx, "serving metrics", slog.String("address", address))

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}

	return nil
}
