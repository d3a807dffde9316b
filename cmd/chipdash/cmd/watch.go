package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vlsilab/chipdash/pkg/api"
	"github.com/vlsilab/chipdash/pkg/logging"
	"github.com/vlsilab/chipdash/pkg/metrics"
	"github.com/vlsilab/chipdash/pkg/models"
	"github.com/vlsilab/chipdash/pkg/poll"
	"github.com/vlsilab/chipdash/pkg/session"
	"github.com/vlsilab/chipdash/pkg/shutdown"
	"github.com/vlsilab/chipdash/pkg/store"
	"github.com/vlsilab/chipdash/pkg/tracing"
)

var (
	pollInterval    time.Duration
	refreshInterval time.Duration
	healthInterval  time.Duration
	metricsListen   string
	jsonLogs        bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background watch daemon",
	Long: `Watch mode keeps the aggregated job list fresh in the background:
running jobs are re-polled on a short interval, both sources are fully
re-aggregated on a longer one, and the merged snapshot is cached locally
so the CLI has something to show when the proxy is down.

Dashboard counters are exposed on a Prometheus endpoint for the whole
lifetime of the daemon.

Example:
  chipdash watch
  chipdash watch --poll-interval 5s --refresh-interval 1m
  chipdash watch --metrics-listen :9105 --json-logs`,
	RunE: runWatchDaemon,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&pollInterval, "poll-interval", poll.DefaultInterval, "How often to re-poll running jobs")
	watchCmd.Flags().DurationVar(&refreshInterval, "refresh-interval", time.Minute, "How often to re-aggregate both sources")
	watchCmd.Flags().DurationVar(&healthInterval, "health-interval", 30*time.Second, "How often to probe upstream health")
	watchCmd.Flags().StringVar(&metricsListen, "metrics-listen", ":9105", "Prometheus metrics listen address")
	watchCmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON log lines")
}

func runWatchDaemon(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.ParseLevel(logLevel), jsonLogs)
	client := newAPIClient()

	provider, err := tracing.Init(tracing.Config{
		ServiceName:  "chipdash-watch",
		OTLPEndpoint: viper.GetString("otlp_endpoint"),
		Enabled:      viper.GetBool("tracing_enabled"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	cache, err := store.NewSQLiteStore(viper.GetString("cache_path"))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	collector := metrics.NewCollector()
	sess := session.New(client, logger)
	sess.SetFetchObserver(func(result api.FetchResult) {
		collector.ObserveFetch(result.GenericErr, result.LDPCErr)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := poll.NewPoller(pollInterval, client.FetchRecord, sess.Jobs,
		func(merged []models.JobRecord) {
			sess.ApplyPoll(merged)
			collector.StatusTransitions.Inc()
			collector.ObserveJobs(merged)
		}, logger)

	manager := shutdown.New(10 * time.Second)
	manager.Register(func(context.Context) error { cancel(); return nil })
	manager.Register(func(context.Context) error { return cache.Close() })
	manager.Register(provider.Shutdown)

	go poller.Run(ctx)

	checker := poll.NewHealthChecker(client.Health)
	go checker.Run(ctx, healthInterval)

	// Refresh loop: full re-aggregation, snapshot persistence, poller
	// wake-up.
	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			refreshOnce(ctx, sess, cache, collector, poller, logger)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	// Metrics endpoint.
	muxHandler := http.NewServeMux()
	muxHandler.Handle("/metrics", collector.Handler())
	server := &http.Server{Addr: metricsListen, Handler: muxHandler}
	manager.Register(shutdown.StopHTTPServer(server))

	go func() {
		logger.Info("metrics endpoint listening", map[string]interface{}{"addr": metricsListen})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics endpoint failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.Info("watch daemon started", map[string]interface{}{
		"proxy":            client.BaseURL(),
		"poll_interval":    pollInterval.String(),
		"refresh_interval": refreshInterval.String(),
	})

	manager.Wait(func(err error) {
		logger.Error("shutdown step failed", map[string]interface{}{"error": err.Error()})
	})
	logger.Info("watch daemon stopped")
	return nil
}

func refreshOnce(ctx context.Context, sess *session.Session, cache store.Store, collector *metrics.Collector, poller *poll.Poller, logger *logging.Logger) {
	if err := sess.Refresh(ctx); err != nil {
		logger.Error("refresh failed", map[string]interface{}{"error": err.Error()})
		return
	}
	collector.PollCycles.Inc()

	jobs := sess.Jobs()
	collector.ObserveJobs(jobs)
	if !sess.Offline() {
		if err := cache.SaveSnapshot(jobs); err != nil {
			logger.Warn("failed to cache snapshot", map[string]interface{}{"error": err.Error()})
		}
	}
	poller.Kick()
}
