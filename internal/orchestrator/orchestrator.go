package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"clusterchat/internal/ledger"
	"clusterchat/internal/llm"
	"clusterchat/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the slice of the record store the orchestrator needs.
type Store interface {
	ChatByID(id uint) (*model.Chat, error)
	RecentMessages(chatID uint, limit int) ([]model.Message, error)
	MembersByCluster(clusterID uint) ([]model.Member, error)
	CreateMessage(message *model.Message) error
	SetChatReady(chatID uint, ready bool) error
	CreateRun(run *model.Run) error
	SaveRun(run *model.Run) error
}

// Completer runs one chat completion.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Config bounds one orchestration loop.
type Config struct {
	MaxRounds        int
	HistoryWindow    int
	PollInterval     time.Duration
	GlobalTimeout    time.Duration
	OfflineThreshold time.Duration
	OutputCap        int
}

// Orchestrator turns one accepted chat message into rounds of dispatched
// tasks and a final agent answer.
type Orchestrator struct {
	store  Store
	ledger *ledger.Ledger
	llm    Completer
	cfg    Config
	logger *logrus.Entry

	// notify, when set, is called with the cluster id after the loop
	// releases the chat, so connected members re-poll promptly.
	notify func(clusterID uint)
}

// New creates an orchestrator.
func New(store Store, taskLedger *ledger.Ledger, completer Completer, cfg Config, logger *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		store:  store,
		ledger: taskLedger,
		llm:    completer,
		cfg:    cfg,
		logger: logger.WithField("component", "orchestrator"),
	}
}

// SetNotify installs the cluster change-notification hook.
func (o *Orchestrator) SetNotify(fn func(clusterID uint)) {
	o.notify = fn
}

// Run drives one orchestration loop for a chat whose ready flag the caller
// already flipped to false. It restores ready=true on every exit path —
// success, error or panic — exactly once. Errors are swallowed: the chat
// becomes usable again and simply receives no answer for that round.
func (o *Orchestrator) Run(ctx context.Context, chatID, senderID uint) {
	log := o.logger.WithFields(logrus.Fields{"chat_id": chatID, "sender_id": senderID})

	run := &model.Run{ChatID: chatID, RequestID: uuid.NewString(), Status: model.RunStatusRunning}
	if err := o.store.CreateRun(run); err != nil {
		log.Errorf("Failed to record run: %v", err)
	}

	var clusterID uint
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Orchestration panic: %v", r)
		}
		if run.Status == model.RunStatusRunning {
			run.Status = model.RunStatusAborted
			if err := o.store.SaveRun(run); err != nil {
				log.Errorf("Failed to finalize run: %v", err)
			}
		}
		if err := o.store.SetChatReady(chatID, true); err != nil {
			log.Errorf("Failed to release chat: %v", err)
		}
		if o.notify != nil && clusterID != 0 {
			o.notify(clusterID)
		}
	}()

	chat, err := o.store.ChatByID(chatID)
	if err != nil {
		log.Errorf("Failed to load chat: %v", err)
		return
	}
	clusterID = chat.ClusterID

	members, err := o.store.MembersByCluster(chat.ClusterID)
	if err != nil {
		log.Errorf("Failed to load members: %v", err)
		return
	}
	history, err := o.store.RecentMessages(chatID, o.cfg.HistoryWindow)
	if err != nil {
		log.Errorf("Failed to load history: %v", err)
		return
	}

	base := append(
		[]llm.Message{{Role: llm.RoleSystem, Content: planningPrompt + rosterPrompt(members)}},
		historyMessages(history)...,
	)

	thinking, ok := o.dispatchRounds(ctx, log, run, base, chatID, senderID)
	if !ok {
		return
	}

	answer, err := o.finalAnswer(ctx, history, thinking)
	if err != nil {
		log.Errorf("Answering completion failed: %v", err)
		return
	}

	text := thinking + MessageSeparator + answer
	if err := o.store.CreateMessage(&model.Message{Text: text, ChatID: chatID, MemberID: nil}); err != nil {
		log.Errorf("Failed to persist answer: %v", err)
		return
	}

	run.Status = model.RunStatusDone
	if err := o.store.SaveRun(run); err != nil {
		log.Errorf("Failed to finalize run: %v", err)
	}
	log.Infof("Orchestration finished after %d round(s)", run.Rounds)
}

// dispatchRounds iterates generate→extract→dispatch→await→fold up to the
// round cap and returns the accumulated thinking transcript.
func (o *Orchestrator) dispatchRounds(ctx context.Context, log *logrus.Entry, run *model.Run, base []llm.Message, chatID, senderID uint) (string, bool) {
	var thinking string
	var allTaskIDs []uint

	for round := 0; round < o.cfg.MaxRounds; round++ {
		messages := base
		if thinking != "" {
			messages = append(append([]llm.Message{}, base...), llm.Message{Role: llm.RoleAssistant, Content: thinking})
		}

		reply, err := o.llm.Complete(ctx, messages)
		if err != nil {
			log.Errorf("Planning completion failed: %v", err)
			return "", false
		}
		thinking += reply + "\n"

		scripts := ExtractScripts(reply, senderID)
		if len(scripts) == 0 {
			break
		}

		ids := make([]uint, 0, len(scripts))
		for _, script := range scripts {
			id, err := o.ledger.Create(chatID, script.TargetID, script.Body)
			if err != nil {
				log.Errorf("Failed to create task: %v", err)
				return "", false
			}
			ids = append(ids, id)
		}
		allTaskIDs = append(allTaskIDs, ids...)

		run.Rounds = round + 1
		if raw, err := json.Marshal(allTaskIDs); err == nil {
			run.TaskIDs = raw
		}
		if err := o.store.SaveRun(run); err != nil {
			log.Errorf("Failed to update run: %v", err)
		}

		if !o.awaitBatch(ctx, log, ids) {
			return "", false
		}

		for _, id := range ids {
			task, err := o.ledger.Get(id)
			if err != nil {
				log.Errorf("Failed to read task result: %v", err)
				return "", false
			}
			thinking += taskTranscript(task)
		}
		thinking += continuationCue
	}

	return thinking, true
}

// awaitBatch polls the sweep until every task of the batch is finished.
// Completions arrive from unrelated request handlers, so each tick re-reads
// the store.
func (o *Orchestrator) awaitBatch(ctx context.Context, log *logrus.Entry, ids []uint) bool {
	start := time.Now()
	for {
		done, err := o.ledger.Sweep(ids, start, o.cfg.GlobalTimeout, o.cfg.OfflineThreshold)
		if err != nil {
			log.Errorf("Sweep failed: %v", err)
			return false
		}
		if done {
			return true
		}

		select {
		case <-ctx.Done():
			log.Warn("Orchestration cancelled while awaiting tasks")
			return false
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

func (o *Orchestrator) finalAnswer(ctx context.Context, history []model.Message, thinking string) (string, error) {
	messages := append(
		[]llm.Message{{Role: llm.RoleSystem, Content: answeringPrompt}},
		historyMessages(history)...,
	)
	if thinking != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleAssistant,
			Content: thinkingOpen + thinking + thinkingClose,
		})
	}
	return o.llm.Complete(ctx, messages)
}
