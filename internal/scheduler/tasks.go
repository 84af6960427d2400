// Package scheduler runs the engine's background work: the recurring lead
// sweep and delivery of queued outbox emails, both over asynq.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSweepRun = "sweep.run"

const TaskNotificationOutboxDue = "notification.outbox.due"

type SweepRunPayload struct {
	TriggeredBy string `json:"triggeredBy"`
}

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

func NewSweepRunTask(payload SweepRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepRun, data), nil
}

func ParseSweepRunPayload(task *asynq.Task) (SweepRunPayload, error) {
	var payload SweepRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SweepRunPayload{}, err
	}
	return payload, nil
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}
