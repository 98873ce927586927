package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"clusterchat/internal/ledger"
	"clusterchat/internal/llm"
	"clusterchat/internal/model"

	"github.com/sirupsen/logrus"
)

// fakeStore backs both the orchestrator and the ledger in tests.
type fakeStore struct {
	chat       model.Chat
	members    []model.Member
	history    []model.Message
	tasks      map[uint]*model.Task
	nextTaskID uint
	runs       map[uint]*model.Run
	nextRunID  uint
	messages   []model.Message
	readySets  []bool

	// autoFinish simulates a member reporting instantly: tasks targeting
	// these member ids are completed with the mapped output on creation.
	autoFinish map[uint]string

	panicOnHistory bool
}

func newFakeStore() *fakeStore {
	chat := model.Chat{Name: "ops", ClusterID: 5}
	chat.ID = 1
	member1 := model.Member{About: "laptop", LastOnline: time.Now()}
	member1.ID = 1
	member2 := model.Member{About: "build box", LastOnline: time.Now()}
	member2.ID = 2
	return &fakeStore{
		chat:       chat,
		members:    []model.Member{member1, member2},
		tasks:      make(map[uint]*model.Task),
		nextTaskID: 1,
		runs:       make(map[uint]*model.Run),
		nextRunID:  1,
		autoFinish: make(map[uint]string),
	}
}

func (s *fakeStore) ChatByID(id uint) (*model.Chat, error) {
	if id != s.chat.ID {
		return nil, fmt.Errorf("chat %d not found", id)
	}
	copied := s.chat
	return &copied, nil
}

func (s *fakeStore) RecentMessages(chatID uint, limit int) ([]model.Message, error) {
	if s.panicOnHistory {
		panic("store connection lost")
	}
	return s.history, nil
}

func (s *fakeStore) MembersByCluster(clusterID uint) ([]model.Member, error) {
	return s.members, nil
}

func (s *fakeStore) CreateMessage(message *model.Message) error {
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeStore) SetChatReady(chatID uint, ready bool) error {
	s.readySets = append(s.readySets, ready)
	return nil
}

func (s *fakeStore) CreateRun(run *model.Run) error {
	run.ID = s.nextRunID
	s.nextRunID++
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *fakeStore) SaveRun(run *model.Run) error {
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *fakeStore) CreateTask(task *model.Task) error {
	task.ID = s.nextTaskID
	s.nextTaskID++
	if out, ok := s.autoFinish[task.MemberID]; ok {
		task.Finished = true
		task.ReturnText = out
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *fakeStore) TaskByID(id uint) (*model.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d not found", id)
	}
	copied := *task
	return &copied, nil
}

func (s *fakeStore) SaveTask(task *model.Task) error {
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *fakeStore) MemberByID(id uint) (*model.Member, error) {
	for _, m := range s.members {
		if m.ID == id {
			copied := m
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("member %d not found", id)
}

// fakeCompleter replays queued replies; the last one repeats.
type fakeCompleter struct {
	replies []string
	err     error
	calls   [][]llm.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.calls) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

func testOrchestrator(store *fakeStore, completer Completer, maxRounds int) *Orchestrator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	taskLedger := ledger.New(store, 4000, entry)
	cfg := Config{
		MaxRounds:        maxRounds,
		HistoryWindow:    30,
		PollInterval:     time.Millisecond,
		GlobalTimeout:    time.Minute,
		OfflineThreshold: 10 * time.Second,
		OutputCap:        4000,
	}
	return New(store, taskLedger, completer, cfg, entry)
}

func TestRunDispatchAndAnswer(t *testing.T) {
	store := newFakeStore()
	store.autoFinish[2] = "2\n"

	completer := &fakeCompleter{replies: []string{
		"Checking the build box.\n```python\n# ID:2\nprint(1+1)\n```",
		"I have the output, nothing more to run.",
		"The build box says 2.",
	}}

	o := testOrchestrator(store, completer, 5)
	o.Run(context.Background(), 1, 1)

	if len(store.tasks) != 1 {
		t.Fatalf("Expected exactly 1 task, got %d", len(store.tasks))
	}
	task := store.tasks[1]
	if task.MemberID != 2 {
		t.Errorf("Expected task targeting member 2, got %d", task.MemberID)
	}

	if len(store.messages) != 1 {
		t.Fatalf("Expected 1 answer message, got %d", len(store.messages))
	}
	msg := store.messages[0]
	if msg.MemberID != nil {
		t.Error("Answer message must be agent-authored (nil member)")
	}

	thinking, answer := SplitAnswer(msg.Text)
	if !strings.Contains(thinking, "2\n") {
		t.Errorf("Thinking transcript should contain the task output, got %q", thinking)
	}
	if answer != "The build box says 2." {
		t.Errorf("Unexpected answer: %q", answer)
	}

	if len(store.readySets) != 1 || !store.readySets[0] {
		t.Errorf("Chat must be released exactly once, got %v", store.readySets)
	}

	run := store.runs[1]
	if run.Status != model.RunStatusDone || run.Rounds != 1 {
		t.Errorf("Unexpected run state: status=%s rounds=%d", run.Status, run.Rounds)
	}
}

func TestRunNoScriptsSingleRound(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{replies: []string{
		"No code needed for that.",
		"Here is your answer.",
	}}

	o := testOrchestrator(store, completer, 5)
	o.Run(context.Background(), 1, 1)

	if len(store.tasks) != 0 {
		t.Errorf("Expected no tasks, got %d", len(store.tasks))
	}
	if len(store.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(store.messages))
	}
	// One planning call, one answering call.
	if len(completer.calls) != 2 {
		t.Errorf("Expected 2 completion calls, got %d", len(completer.calls))
	}
}

func TestRunCompleterErrorReleasesChat(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{err: errors.New("api unavailable")}

	o := testOrchestrator(store, completer, 5)
	o.Run(context.Background(), 1, 1)

	if len(store.messages) != 0 {
		t.Error("No answer message may be produced on failure")
	}
	if len(store.readySets) != 1 || !store.readySets[0] {
		t.Errorf("Chat must still be released exactly once, got %v", store.readySets)
	}
	if store.runs[1].Status != model.RunStatusAborted {
		t.Errorf("Run should be aborted, got %s", store.runs[1].Status)
	}
}

func TestRunPanicReleasesChat(t *testing.T) {
	store := newFakeStore()
	store.panicOnHistory = true
	completer := &fakeCompleter{replies: []string{"unused"}}

	o := testOrchestrator(store, completer, 5)
	o.Run(context.Background(), 1, 1) // must not propagate the panic

	if len(store.readySets) != 1 || !store.readySets[0] {
		t.Errorf("Chat must be released after a panic, got %v", store.readySets)
	}
	if len(store.messages) != 0 {
		t.Error("No message may be written after a panic")
	}
}

func TestRunRoundCap(t *testing.T) {
	store := newFakeStore()
	store.autoFinish[1] = "ok\n"

	// Always dispatches, so only the cap stops it.
	completer := &fakeCompleter{replies: []string{
		"```python\n# ID:1\nprint('again')\n```",
	}}

	o := testOrchestrator(store, completer, 3)
	o.Run(context.Background(), 1, 1)

	if len(store.tasks) != 3 {
		t.Errorf("Expected one task per round, got %d", len(store.tasks))
	}
	// Three planning calls plus the answering call.
	if len(completer.calls) != 4 {
		t.Errorf("Expected 4 completion calls, got %d", len(completer.calls))
	}
	if store.runs[1].Rounds != 3 {
		t.Errorf("Expected 3 recorded rounds, got %d", store.runs[1].Rounds)
	}
	if len(store.messages) != 1 {
		t.Errorf("Cap exit still answers, got %d messages", len(store.messages))
	}
}

func TestRunOfflineMemberFoldedAsFailure(t *testing.T) {
	store := newFakeStore()
	// Member 2 has not been seen for far longer than the offline threshold
	// and never reports.
	store.members[1].LastOnline = time.Now().Add(-time.Hour)

	completer := &fakeCompleter{replies: []string{
		"```python\n# ID:2\nprint('anyone there?')\n```",
		"The member is unreachable.",
		"Member 2 appears to be offline.",
	}}

	o := testOrchestrator(store, completer, 5)
	o.Run(context.Background(), 1, 1)

	if len(store.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(store.messages))
	}
	thinking, _ := SplitAnswer(store.messages[0].Text)
	if !strings.Contains(thinking, model.TaskResultOffline) {
		t.Errorf("Offline failure should be folded into the transcript, got %q", thinking)
	}
}

func TestRunThinkingAppendedAsAssistantTurn(t *testing.T) {
	store := newFakeStore()
	store.autoFinish[1] = "done\n"

	completer := &fakeCompleter{replies: []string{
		"```python\n# ID:1\nprint('x')\n```",
		"Finished.",
		"All good.",
	}}

	o := testOrchestrator(store, completer, 5)
	o.Run(context.Background(), 1, 1)

	if len(completer.calls) < 2 {
		t.Fatalf("Expected at least 2 calls, got %d", len(completer.calls))
	}
	second := completer.calls[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleAssistant {
		t.Errorf("Thinking must ride as the trailing assistant turn, got role %q", last.Role)
	}
	if !strings.Contains(last.Content, "done\n") {
		t.Errorf("Assistant turn should carry folded results, got %q", last.Content)
	}
}
