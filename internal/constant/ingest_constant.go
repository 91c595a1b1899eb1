package constant

import "time"

const (
	// InlineSyncThreshold is the batch size at or above which import
	// requests are queued instead of synced inline.
	InlineSyncThreshold = 20

	// InlineSyncConcurrency bounds the fan-out of inline batch syncs.
	InlineSyncConcurrency = 20

	// MaxTaskRetries is how many times a failed import task is re-driven
	// before it is closed out.
	MaxTaskRetries = 2

	// TaskTimeout closes a task stuck in RUNNING regardless of its
	// remaining retry budget.
	TaskTimeout = 3 * time.Minute

	// QueuePollInterval is the busy poll interval of the task loop.
	QueuePollInterval = 5 * time.Second

	// QueueIdleInterval is the cold-start backoff when the queue is empty.
	QueueIdleInterval = 30 * time.Second

	// RefreshDrainInterval paces the daily refresh drain loop.
	RefreshDrainInterval = 60 * time.Second
)
