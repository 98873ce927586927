package tasks

import (
	"time"

	"clusterchat/api/v1/middleware"
	"clusterchat/internal/httpx"
	"clusterchat/internal/ledger"
	"clusterchat/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles the agent-facing task endpoints: pulling pending work
// and reporting results.
type Handler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewHandler creates a new tasks handler.
func NewHandler(db *gorm.DB, taskLedger *ledger.Ledger) *Handler {
	return &Handler{db: db, ledger: taskLedger}
}

type taskEntry struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// GetTasks returns every unfinished task addressed to the caller, oldest
// first.
// POST /api/get_tasks
func (h *Handler) GetTasks(c *gin.Context) {
	member := middleware.Member(c)

	var pending []model.Task
	err := h.db.Where("member_id = ? AND finished = ?", member.ID, false).
		Order("created_at ASC").
		Find(&pending).Error
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to load tasks", err))
		return
	}

	entries := make([]taskEntry, 0, len(pending))
	for _, t := range pending {
		entries = append(entries, taskEntry{
			ID:        t.ID,
			Text:      t.Text,
			Timestamp: t.CreatedAt,
		})
	}

	httpx.OKData(c, entries)
}

type completeRequest struct {
	EventID uint   `json:"event_id"`
	Text    string `json:"text"`
}

// CompleteTask records a task's output. Only the member the task is
// addressed to may report it; the output is truncated to the configured
// cap before it is stored.
// POST /api/complete_task
func (h *Handler) CompleteTask(c *gin.Context) {
	member := middleware.Member(c)

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EventID == 0 {
		httpx.FailErr(c, httpx.ErrBadRequest("Got incomplete data"))
		return
	}

	task, err := h.ledger.Get(req.EventID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrBadRequest("Invalid task id"))
		return
	}
	if task.MemberID != member.ID {
		httpx.FailErr(c, httpx.ErrAccessDenied())
		return
	}

	if err := h.ledger.MarkFinished(task.ID, req.Text); err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to save result", err))
		return
	}

	httpx.OK(c)
}
