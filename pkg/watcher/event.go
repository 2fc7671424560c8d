package watcher

import (
	"time"

	"github.com/google/uuid"
)

// Event describes one produced task pushed to its destination queue.
type Event struct {
	Time       time.Time `json:"time"`
	Set        *string   `json:"set,omitempty"`
	ID         string    `json:"id"`
	InputQueue string    `json:"input_queue"`
	Rule       string    `json:"rule"`
	Task       string    `json:"task"`
	Queue      string    `json:"queue"`
	InputTask  string    `json:"input_task"`
}

func newEvent(now time.Time, inputQueue, inputTask, ruleName, task, queue string, set *string) Event {
	return Event{
		ID:         uuid.NewString(),
		Time:       now.UTC(),
		InputQueue: inputQueue,
		Rule:       ruleName,
		Task:       task,
		Queue:      queue,
		Set:        set,
		InputTask:  inputTask,
	}
}
