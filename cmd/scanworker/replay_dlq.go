package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a11yworks/scanworker/internal/config"
	"github.com/a11yworks/scanworker/internal/queue"
)

var replayTaskID string

var replayDLQCmd = &cobra.Command{
	Use:   "replay-dlq",
	Short: "Re-enqueue a dead-lettered job onto the main queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayTaskID == "" {
			return fmt.Errorf("--task-id is required")
		}
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		redisOpt, err := redisClientOpt(cfg.RedisURL)
		if err != nil {
			return err
		}
		adapter := queue.New(redisOpt, cfg.QueueName)
		defer adapter.Close()

		if err := adapter.RetryFromDLQ(context.Background(), replayTaskID); err != nil {
			return fmt.Errorf("replay %s: %w", replayTaskID, err)
		}
		fmt.Printf("replayed dead-lettered task %s\n", replayTaskID)
		return nil
	},
}

func init() {
	replayDLQCmd.Flags().StringVar(&replayTaskID, "task-id", "", "DLQ task id to replay (from the asynq inspector)")
}
