package poller

import (
	"io"
	"testing"
	"time"

	"clusterchat/internal/agentapi"

	"github.com/sirupsen/logrus"
)

func testTaskPoller() *TaskPoller {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewTaskPoller(nil, nil, time.Second, logrus.NewEntry(logger))
}

func TestNextPicksOldestFirst(t *testing.T) {
	p := testTaskPoller()
	tasks := []agentapi.Task{
		{ID: 3, Text: "first"},
		{ID: 5, Text: "second"},
	}

	task, ok := p.next(tasks)
	if !ok || task.ID != 3 {
		t.Errorf("next() = %+v, %v; want task 3", task, ok)
	}
}

func TestNextSkipsExecuted(t *testing.T) {
	p := testTaskPoller()
	p.executed[3] = true
	tasks := []agentapi.Task{
		{ID: 3, Text: "already ran"},
		{ID: 5, Text: "pending"},
	}

	task, ok := p.next(tasks)
	if !ok || task.ID != 5 {
		t.Errorf("next() = %+v, %v; want task 5", task, ok)
	}
}

func TestNextEmptyWhenAllExecuted(t *testing.T) {
	p := testTaskPoller()
	p.executed[3] = true

	if _, ok := p.next([]agentapi.Task{{ID: 3}}); ok {
		t.Error("next() found a task, want none")
	}
}
