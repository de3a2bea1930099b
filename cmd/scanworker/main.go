package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/a11yworks/scanworker/internal/browserpool"
	"github.com/a11yworks/scanworker/internal/config"
	"github.com/a11yworks/scanworker/internal/health"
	"github.com/a11yworks/scanworker/internal/logging"
	"github.com/a11yworks/scanworker/internal/models"
	"github.com/a11yworks/scanworker/internal/normalize"
	"github.com/a11yworks/scanworker/internal/orchestrator"
	"github.com/a11yworks/scanworker/internal/persistence"
	"github.com/a11yworks/scanworker/internal/queue"
	"github.com/a11yworks/scanworker/internal/robots"
	"github.com/a11yworks/scanworker/internal/ruleengine"
	"github.com/a11yworks/scanworker/internal/screenshot"
	"github.com/a11yworks/scanworker/internal/urlguard"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "scanworker",
	Short: "Accessibility scan worker: consumes scan jobs, crawls, audits, and persists findings.",
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	conn, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opt, ok := conn.(asynq.RedisClientOpt)
	if !ok {
		return asynq.RedisClientOpt{}, fmt.Errorf("REDIS_URL must resolve to a single-node redis connection")
	}
	return opt, nil
}

func loadAndInit() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.LogDir,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker: consume scan jobs until shutdown.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAndInit()
		if err != nil {
			return err
		}

		redisOpt, err := redisClientOpt(cfg.RedisURL)
		if err != nil {
			return err
		}

		gateway, err := persistence.New(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer gateway.Close()

		monitor := browserpool.NewResourceMonitor(browserpool.ResourceMonitorConfig{
			SafetyReserve:   cfg.Resource.SafetyReserveBytes(),
			SafetyThreshold: cfg.Resource.SafetyThresholdBytes(),
			SampleInterval:  time.Second,
		})
		poolCfg := browserpool.DefaultConfig()
		poolCfg.MemoryMonitor = monitor
		pool := browserpool.New(poolCfg)
		defer pool.Shutdown()

		translator := normalize.NewTranslator(cfg.TranslationTable)
		runner := ruleengine.New(cfg.EngineScript, translator)
		shots := screenshot.New(cfg.ScreenshotBaseDir)
		guard := urlguard.New()
		robotsPolicy := robots.New()
		adapter := queue.New(redisOpt, cfg.QueueName)
		defer adapter.Close()

		orch := orchestrator.New(guard, robotsPolicy, pool, runner, shots, gateway, adapter)

		worker := queue.NewWorker(redisOpt, cfg.QueueName, cfg.WorkerConcurrency, adapter)
		worker.Handle(func(ctx context.Context, payload []byte) error {
			job, err := models.ParseJobMessage(payload)
			if err != nil {
				log.Error().Err(err).Msg("rejecting malformed job payload to DLQ")
				if dlqErr := adapter.MoveToDLQ(ctx, payload, err.Error(), 0); dlqErr != nil {
					log.Error().Err(dlqErr).Msg("failed to move malformed payload to DLQ")
				}
				return nil
			}
			runErr := orch.Run(ctx, *job)
			if runErr == nil {
				return nil
			}
			var scanErr *models.ScanError
			if errors.As(runErr, &scanErr) && !scanErr.Kind.Transient() {
				log.Error().Err(scanErr).Str("scanId", job.ScanID).Msg("scan permanently failed, not retrying")
				return nil
			}
			return runErr
		})

		healthSrv := health.New(cfg.AppVersion, pool, gateway, func(ctx context.Context) (health.QueueStats, error) {
			stats, err := adapter.Stats(ctx)
			if err != nil {
				return health.QueueStats{}, err
			}
			return health.QueueStats{
				Waiting:   stats.Waiting,
				Active:    stats.Active,
				Completed: stats.Completed,
				Failed:    stats.Failed,
			}, nil
		})
		go func() {
			if err := healthSrv.Start(fmt.Sprintf(":%d", cfg.HealthPort)); err != nil {
				log.Warn().Err(err).Msg("health server stopped")
			}
		}()

		errCh := make(chan error, 1)
		go func() { errCh <- worker.Run() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			worker.Shutdown()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = healthSrv.Shutdown(shutdownCtx)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional config file path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(replayDLQCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
