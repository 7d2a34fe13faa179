// Package events provides append-order event publishing for task, job, and
// batch lifecycle transitions.
package events

import "time"

// Event is a published notification. Data carries the payload appropriate
// to Type — typically a task.Event for task-lifecycle events, or a job/batch
// summary for Job/Batch events.
type Event struct {
	Type   string    `json:"type"`
	TaskID string    `json:"task_id"`
	Data   any       `json:"data"`
	Time   time.Time `json:"time"`
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(eventType, taskID string, data any) Event {
	return Event{
		Type:   eventType,
		TaskID: taskID,
		Data:   data,
		Time:   time.Now(),
	}
}
