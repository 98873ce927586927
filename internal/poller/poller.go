// Package poller drives the agent's two background loops: mirroring the
// cluster snapshot and executing dispatched tasks.
package poller

import (
	"context"
	"time"

	"clusterchat/internal/agentapi"
	"clusterchat/internal/mirror"
	"clusterchat/internal/sandbox"

	"github.com/sirupsen/logrus"
)

// SnapshotPoller keeps the local mirror in sync with the server. Each
// fetched snapshot is handed off to a merge goroutine so the poll loop
// never blocks on reconciliation; a snapshot arriving while the previous
// one is still merging is dropped, the next cycle covers it.
type SnapshotPoller struct {
	client   *agentapi.Client
	state    *mirror.State
	interval time.Duration
	logger   *logrus.Entry
}

// NewSnapshotPoller creates a snapshot poller.
func NewSnapshotPoller(client *agentapi.Client, state *mirror.State,
	interval time.Duration, logger *logrus.Entry) *SnapshotPoller {
	return &SnapshotPoller{
		client:   client,
		state:    state,
		interval: interval,
		logger:   logger.WithField("component", "snapshot-poller"),
	}
}

// Run polls until ctx is cancelled.
func (p *SnapshotPoller) Run(ctx context.Context) {
	snapshots := make(chan []byte, 1)

	go func() {
		for raw := range snapshots {
			// Merge logs its own rejections.
			_ = p.state.Merge(raw)
		}
	}()
	defer close(snapshots)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		raw, err := p.client.Info()
		if err != nil {
			p.logger.WithError(err).Warn("Snapshot fetch failed")
			continue
		}
		select {
		case snapshots <- raw:
		default:
		}
	}
}

// TaskPoller pulls pending tasks and runs them through the sandbox,
// oldest first, one per cycle. Ids that were already executed are skipped
// even if the completion report failed; the server's sweep resolves those.
type TaskPoller struct {
	client   *agentapi.Client
	box      *sandbox.Sandbox
	interval time.Duration
	executed map[uint]bool
	logger   *logrus.Entry
}

// NewTaskPoller creates a task poller.
func NewTaskPoller(client *agentapi.Client, box *sandbox.Sandbox,
	interval time.Duration, logger *logrus.Entry) *TaskPoller {
	return &TaskPoller{
		client:   client,
		box:      box,
		interval: interval,
		executed: make(map[uint]bool),
		logger:   logger.WithField("component", "task-poller"),
	}
}

// Run polls until ctx is cancelled.
func (p *TaskPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.cycle(ctx)
	}
}

func (p *TaskPoller) cycle(ctx context.Context) {
	tasks, err := p.client.GetTasks()
	if err != nil {
		p.logger.WithError(err).Warn("Task fetch failed")
		return
	}

	task, ok := p.next(tasks)
	if !ok {
		return
	}

	log := p.logger.WithField("task_id", task.ID)
	log.Info("Executing task")

	output := p.box.Execute(ctx, task.Text)
	p.executed[task.ID] = true

	if err := p.client.CompleteTask(task.ID, output); err != nil {
		log.WithError(err).Error("Failed to report task result")
		return
	}
	log.Info("Task completed")
}

// next picks the oldest task not yet executed. The server returns tasks
// oldest first.
func (p *TaskPoller) next(tasks []agentapi.Task) (agentapi.Task, bool) {
	for _, t := range tasks {
		if !p.executed[t.ID] {
			return t, true
		}
	}
	return agentapi.Task{}, false
}
