package ledger

import (
	"fmt"
	"time"
	"unicode/utf8"

	"clusterchat/internal/liveness"
	"clusterchat/internal/model"

	"github.com/sirupsen/logrus"
)

// Store is the slice of the record store the ledger needs. Completions are
// written by unrelated request handlers, so every read must hit the store
// fresh rather than a cached view.
type Store interface {
	CreateTask(task *model.Task) error
	TaskByID(id uint) (*model.Task, error)
	SaveTask(task *model.Task) error
	MemberByID(id uint) (*model.Member, error)
}

// Ledger owns task creation, completion and the timeout/offline sweep.
type Ledger struct {
	store     Store
	outputCap int
	logger    *logrus.Entry
	now       func() time.Time
}

// New creates a ledger. outputCap bounds every stored ReturnText.
func New(store Store, outputCap int, logger *logrus.Entry) *Ledger {
	return &Ledger{
		store:     store,
		outputCap: outputCap,
		logger:    logger.WithField("component", "task-ledger"),
		now:       time.Now,
	}
}

// Create inserts a pending task targeting one member.
func (l *Ledger) Create(chatID, targetID uint, text string) (uint, error) {
	task := &model.Task{
		Text:     text,
		ChatID:   chatID,
		MemberID: targetID,
	}
	if err := l.store.CreateTask(task); err != nil {
		return 0, fmt.Errorf("failed to create task: %w", err)
	}
	return task.ID, nil
}

// Get fetches one task by id.
func (l *Ledger) Get(id uint) (*model.Task, error) {
	return l.store.TaskByID(id)
}

// MarkFinished stores a task's output, truncated to the cap, and moves it
// to its terminal state. Finishing an already-finished task is a no-op.
func (l *Ledger) MarkFinished(id uint, returnText string) error {
	task, err := l.store.TaskByID(id)
	if err != nil {
		return err
	}
	if task.Finished {
		return nil
	}
	task.Finished = true
	task.ReturnText = Truncate(returnText, l.outputCap)
	return l.store.SaveTask(task)
}

// Sweep applies the timeout/offline policy to a batch of tasks and reports
// whether every task is finished. Each task row is re-read fresh. For an
// unfinished task the global deadline is checked first, then the target
// member's staleness; forced completions are persisted immediately.
func (l *Ledger) Sweep(ids []uint, start time.Time, globalTimeout, offlineThreshold time.Duration) (bool, error) {
	now := l.now()
	allFinished := true

	for _, id := range ids {
		task, err := l.store.TaskByID(id)
		if err != nil {
			return false, fmt.Errorf("failed to read task %d: %w", id, err)
		}
		if task.Finished {
			continue
		}

		if now.Sub(start) > globalTimeout {
			if err := l.force(task, model.TaskResultTimeout); err != nil {
				return false, err
			}
			continue
		}

		member, err := l.store.MemberByID(task.MemberID)
		if err != nil {
			return false, fmt.Errorf("failed to read member %d: %w", task.MemberID, err)
		}
		if liveness.Stale(member, offlineThreshold, now) {
			if err := l.force(task, model.TaskResultOffline); err != nil {
				return false, err
			}
			continue
		}

		allFinished = false
	}

	return allFinished, nil
}

func (l *Ledger) force(task *model.Task, result string) error {
	task.Finished = true
	task.ReturnText = result
	if err := l.store.SaveTask(task); err != nil {
		return fmt.Errorf("failed to force-finish task %d: %w", task.ID, err)
	}
	l.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"member_id": task.MemberID,
	}).Warnf("Task forced to completion: %s", result)
	return nil
}

// Truncate cuts s to at most cap bytes on a rune boundary, appending a
// marker when anything was dropped.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[output truncated]"
}
