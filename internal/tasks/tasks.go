package tasks

import (
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeBatchPurchase = "dca:batch_purchase"

	QUEUE_NAME = "dca_queue"
)

// GetTaskResult reads the outcome of an enqueued task, distinguishing
// "still running" from terminal states.
func GetTaskResult(inspector *asynq.Inspector, taskID string) ([]byte, error) {
	task, err := inspector.GetTaskInfo(QUEUE_NAME, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task info: %w", err)
	}

	switch task.State {
	case asynq.TaskStateCompleted:
		return task.Result, nil
	case asynq.TaskStateArchived:
		return nil, fmt.Errorf("task archived: %s", task.LastErr)
	case asynq.TaskStatePending, asynq.TaskStateActive, asynq.TaskStateScheduled, asynq.TaskStateRetry, asynq.TaskStateAggregating:
		return nil, fmt.Errorf("task is still in progress")
	default:
		return nil, fmt.Errorf("unexpected task state: %s", task.State)
	}
}
