package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/a11yworks/scanworker/internal/config"
	"github.com/a11yworks/scanworker/internal/models"
	"github.com/a11yworks/scanworker/internal/queue"
)

var (
	enqueueURL      string
	enqueueURLFile  string
	enqueueUserID   string
	enqueueMaxPages int
	enqueueCrawl    bool
	enqueueNoRobots bool
	enqueueNoShots  bool
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue one scan job, or a batch from --url-file, onto the queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		urls := []string{}
		if enqueueURLFile != "" {
			f, err := os.Open(enqueueURLFile)
			if err != nil {
				return fmt.Errorf("open url file: %w", err)
			}
			defer f.Close()
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					urls = append(urls, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read url file: %w", err)
			}
		} else if enqueueURL != "" {
			urls = append(urls, enqueueURL)
		} else {
			return fmt.Errorf("one of --url or --url-file is required")
		}

		bar := progressbar.Default(int64(len(urls)), "enqueueing")
		for _, u := range urls {
			job := models.JobMessage{
				ScanID:   uuid.NewString(),
				URL:      u,
				Crawl:    enqueueCrawl,
				MaxPages: enqueueMaxPages,
				UserID:   enqueueUserID,
				Options: models.JobOptions{
					RespectRobotsTxt:   !enqueueNoRobots,
					CaptureScreenshots: !enqueueNoShots,
				},
			}
			id, err := adapter.Enqueue(context.Background(), job)
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", u, err)
			}
			fmt.Printf("enqueued %s as task %s (scanId=%s)\n", u, id, job.ScanID)
			_ = bar.Add(1)
		}
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVarP(&enqueueURL, "url", "u", "", "target URL to scan")
	enqueueCmd.Flags().StringVarP(&enqueueURLFile, "url-file", "f", "", "file with one URL per line for batch enqueue")
	enqueueCmd.Flags().StringVar(&enqueueUserID, "user-id", "cli", "userId attached to the job")
	enqueueCmd.Flags().IntVar(&enqueueMaxPages, "max-pages", 20, "maximum pages to crawl per job")
	enqueueCmd.Flags().BoolVar(&enqueueCrawl, "crawl", true, "crawl beyond the seed page")
	enqueueCmd.Flags().BoolVar(&enqueueNoRobots, "no-robots", false, "ignore robots.txt")
	enqueueCmd.Flags().BoolVar(&enqueueNoShots, "no-screenshots", false, "skip screenshot capture")
}
