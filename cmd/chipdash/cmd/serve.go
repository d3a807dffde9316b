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
	"github.com/vlsilab/chipdash/pkg/poll"
	"github.com/vlsilab/chipdash/pkg/ratelimit"
	"github.com/vlsilab/chipdash/pkg/server"
	"github.com/vlsilab/chipdash/pkg/session"
	"github.com/vlsilab/chipdash/pkg/shutdown"
	"github.com/vlsilab/chipdash/pkg/tracing"
)

var (
	serveListen string
	serveRPS    float64
	serveBurst  int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local dashboard API",
	Long: `Serve exposes the aggregated job list over HTTP for local frontends:
job pages, per-job derived metrics, delete and rerun actions, health and
Prometheus metrics. Requests are rate limited per caller.

Example:
  chipdash serve
  chipdash serve --listen :8085 --rps 10 --burst 20`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", ":8085", "dashboard API listen address")
	serveCmd.Flags().Float64Var(&serveRPS, "rps", 5, "allowed requests per second per caller")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 10, "allowed burst per caller")
	serveCmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON log lines")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.ParseLevel(logLevel), jsonLogs)
	client := newAPIClient()

	provider, err := tracing.Init(tracing.Config{
		ServiceName:  "chipdash-serve",
		OTLPEndpoint: viper.GetString("otlp_endpoint"),
		Enabled:      viper.GetBool("tracing_enabled"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	collector := metrics.NewCollector()
	sess := session.New(client, logger)
	sess.SetFetchObserver(func(result api.FetchResult) {
		collector.ObserveFetch(result.GenericErr, result.LDPCErr)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := poll.NewHealthChecker(client.Health)
	go checker.Run(ctx, 30*time.Second)

	handler := server.NewHandler(sess, client, collector, checker, logger)
	limiter := ratelimit.NewLimiter(serveRPS, serveBurst)

	httpServer := &http.Server{
		Addr:         serveListen,
		Handler:      handler.Router(limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	manager := shutdown.New(10 * time.Second)
	manager.Register(func(context.Context) error { cancel(); return nil })
	manager.Register(provider.Shutdown)
	manager.Register(shutdown.StopHTTPServer(httpServer))

	go func() {
		logger.Info("dashboard API listening", map[string]interface{}{
			"addr":  serveListen,
			"proxy": client.BaseURL(),
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("dashboard API failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	manager.Wait(func(err error) {
		logger.Error("shutdown step failed", map[string]interface{}{"error": err.Error()})
	})
	logger.Info("dashboard API stopped")
	return nil
}
