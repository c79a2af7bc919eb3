package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalyticsWarmup recomputes the cached analytics views.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// Reasons recorded on warmup payloads.
const (
	ReasonSchedule = "schedule"
	ReasonWrite    = "ledger-write"
	ReasonManual   = "manual"
)

// warmupDedupWindow coalesces bursts of ledger writes into one warmup.
const warmupDedupWindow = 30 * time.Second

// AnalyticsWarmupPayload describes a warmup run. TrailingMonths bounds the
// extra windowed series warmed next to the open range; zero skips it.
type AnalyticsWarmupPayload struct {
	Reason         string `json:"reason"`
	TrailingMonths int    `json:"trailing_months,omitempty"`
}

// NewAnalyticsWarmupTask constructs an Asynq task.
func NewAnalyticsWarmupTask(payload AnalyticsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}
