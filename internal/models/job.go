package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// JobOptions is the optional sub-object of a scan job message.
type JobOptions struct {
	WaitTimeMs         int  `json:"waitTime,omitempty"`
	RespectRobotsTxt   bool `json:"respectRobotsTxt"`
	CaptureScreenshots bool `json:"captureScreenshots"`
}

// JobMessage is the decoded, schema-validated scan job queue payload.
type JobMessage struct {
	ScanID   string     `json:"scanId"`
	URL      string     `json:"url"`
	Crawl    bool       `json:"crawl"`
	MaxPages int        `json:"maxPages"`
	UserID   string     `json:"userId"`
	Options  JobOptions `json:"options"`
}

// wireJobOptions mirrors JobOptions but with pointer bools, so the decoder
// can tell "field absent" from "field explicitly false" and apply the
// documented defaults (respectRobotsTxt=true, captureScreenshots=true) only
// in the absent case.
type wireJobOptions struct {
	WaitTimeMs         int   `json:"waitTime"`
	RespectRobotsTxt   *bool `json:"respectRobotsTxt"`
	CaptureScreenshots *bool `json:"captureScreenshots"`
}

type wireJobMessage struct {
	ScanID   string          `json:"scanId"`
	URL      string          `json:"url"`
	Crawl    bool            `json:"crawl"`
	MaxPages int             `json:"maxPages"`
	UserID   string          `json:"userId"`
	Options  *wireJobOptions `json:"options"`
}

// ParseJobMessage decodes and validates raw task payload bytes. Raw queue
// bytes are untrusted input, so this is the only constructor for JobMessage
// from wire bytes: malformed messages are rejected immediately rather than
// partially trusted.
func ParseJobMessage(raw []byte) (*JobMessage, error) {
	var wire wireJobMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("malformed job payload: %w", err)
	}
	if _, err := uuid.Parse(wire.ScanID); err != nil {
		return nil, fmt.Errorf("scanId is not a valid UUID: %w", err)
	}
	if wire.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if wire.MaxPages < 1 {
		return nil, fmt.Errorf("maxPages must be >= 1, got %d", wire.MaxPages)
	}
	if wire.UserID == "" {
		return nil, fmt.Errorf("userId is required")
	}

	msg := &JobMessage{
		ScanID:   wire.ScanID,
		URL:      wire.URL,
		Crawl:    wire.Crawl,
		MaxPages: wire.MaxPages,
		UserID:   wire.UserID,
		Options: JobOptions{
			RespectRobotsTxt:   true,
			CaptureScreenshots: true,
		},
	}
	if wire.Options != nil {
		msg.Options.WaitTimeMs = wire.Options.WaitTimeMs
		if wire.Options.RespectRobotsTxt != nil {
			msg.Options.RespectRobotsTxt = *wire.Options.RespectRobotsTxt
		}
		if wire.Options.CaptureScreenshots != nil {
			msg.Options.CaptureScreenshots = *wire.Options.CaptureScreenshots
		}
	}
	return msg, nil
}

// ProgressEvent is emitted to the queue's progress channel.
type ProgressEvent struct {
	Stage        ProgressStage `json:"stage"`
	PagesScanned int           `json:"pagesScanned"`
	TotalPages   int           `json:"totalPages"`
	CurrentURL   string        `json:"currentUrl,omitempty"`
	IssuesFound  int           `json:"issuesFound"`
}

// DLQMessage is the payload routed to the dead-letter queue on permanent
// failure: original payload plus failure metadata.
type DLQMessage struct {
	Original      json.RawMessage `json:"original"`
	OriginalError string          `json:"originalError"`
	FailedAt      string          `json:"failedAt"`
	Attempts      int             `json:"attempts"`
}
