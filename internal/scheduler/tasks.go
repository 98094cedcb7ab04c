// Package scheduler provides asynq task definitions and the background
// worker that processes webhook-ingested messages and prunes process logs.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskProcessMessage = "pipeline.process_message"

const TaskPruneProcessLogs = "pipeline.prune_logs"

// ProcessMessagePayload carries one webhook-ingested message through the
// queue to the pipeline.
type ProcessMessagePayload struct {
	BusinessID string `json:"businessId"`
	UserID     string `json:"userId"`
	Content    string `json:"content"`
	Channel    string `json:"channel"`
}

func NewProcessMessageTask(payload ProcessMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcessMessage, data), nil
}

func ParseProcessMessagePayload(task *asynq.Task) (ProcessMessagePayload, error) {
	var payload ProcessMessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ProcessMessagePayload{}, err
	}
	return payload, nil
}

func NewPruneProcessLogsTask() *asynq.Task {
	return asynq.NewTask(TaskPruneProcessLogs, nil)
}
