package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a11yworks/scanworker/internal/config"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load configuration and report any problems without starting the worker.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}
		fmt.Println("configuration valid")
		fmt.Printf("  queue:             %s\n", cfg.QueueName)
		fmt.Printf("  worker concurrency: %d\n", cfg.WorkerConcurrency)
		fmt.Printf("  health port:        %d\n", cfg.HealthPort)
		fmt.Printf("  app version:        %s\n", cfg.AppVersion)
		fmt.Printf("  screenshot dir:     %s\n", cfg.ScreenshotBaseDir)
		return nil
	},
}
