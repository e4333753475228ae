package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/api"
	"github.com/pydverify/backend/internal/metrics"
	"github.com/pydverify/backend/internal/middleware/ratelimit"
	"github.com/pydverify/backend/internal/scheduler"
	"github.com/pydverify/backend/pkg/logger"
)

func newServeCmd(load func() (*app, error)) *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the verification HTTP API",
		Long: `Serve the verification API under /api/v1 and Prometheus metrics under
/metrics. With --with-scheduler the daily and weekly knowledge updates run in
the same process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			metrics.Init()
			metrics.KnowledgeEntries.Set(float64(len(a.store.Latest().KnowledgeBase)))

			limiter := ratelimit.New(ratelimit.Config{
				MaxRequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute,
				Logger:               logger.Named("http"),
			})
			defer limiter.Stop()

			deps := api.Deps{
				Engine:         a.engine,
				Store:          a.store,
				Updater:        a.updater,
				Aggregator:     a.aggregator,
				RateLimiter:    limiter,
				ReadTimeout:    time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout:   time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
				BodyLimit:      a.cfg.Server.BodyLimit,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				IsDevelopment:  a.cfg.Server.Development,
				AccessLog:      a.cfg.Server.AccessLog,
			}
			if a.runs != nil {
				deps.Runs = a.runs
			}
			server := api.NewApp(deps)

			ctx := cmd.Context()

			if withScheduler {
				s, err := scheduler.New(a.updater, scheduler.Config{
					Daily:  a.cfg.Schedule.Daily,
					Weekly: a.cfg.Schedule.Weekly,
				})
				if err != nil {
					return fmt.Errorf("%w: %v", ErrConfig, err)
				}
				go func() {
					if err := s.Run(ctx); err != nil {
						logger.Error("Scheduler stopped with error", zap.Error(err))
					}
				}()
			}

			addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
			logger.Info("Server starting", zap.String("address", addr))

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Listen(addr)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Server shutting down gracefully...")
			if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
				logger.Warn("Shutdown did not complete cleanly", zap.Error(err))
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "run the knowledge update schedule in-process")

	return cmd
}
