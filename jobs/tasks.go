package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheWarmup refreshes the analytics API response cache.
	TaskCacheWarmup = "cache:warmup"
)

// CacheWarmupPayload selects what a warmup run loads. Empty fields fall back
// to every project, all trend periods and a seven day daily stats window.
type CacheWarmupPayload struct {
	Projects []string          `json:"projects,omitempty"`
	Periods  []visitors.Period `json:"periods,omitempty"`
	Days     int               `json:"days,omitempty"`
	// Bump invalidates the cache before loading so every entry is refetched.
	Bump bool `json:"bump,omitempty"`
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}
