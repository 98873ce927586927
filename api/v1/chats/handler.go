package chats

import (
	"context"

	"clusterchat/api/v1/middleware"
	"clusterchat/internal/httpx"
	"clusterchat/internal/model"
	"clusterchat/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler handles chat CRUD and message sending.
type Handler struct {
	db     *gorm.DB
	orch   *orchestrator.Orchestrator
	notify func(clusterID uint)
}

// NewHandler creates a new chats handler. notify is called after every
// mutation so connected members re-poll; it may be nil.
func NewHandler(db *gorm.DB, orch *orchestrator.Orchestrator, notify func(clusterID uint)) *Handler {
	h := &Handler{db: db, orch: orch, notify: notify}
	if h.notify == nil {
		h.notify = func(uint) {}
	}
	return h
}

type createRequest struct {
	Name string `json:"name"`
}

// Create adds a chat to the caller's cluster and returns its id.
// POST /api/create_chat
func (h *Handler) Create(c *gin.Context) {
	member := middleware.Member(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		httpx.FailErr(c, httpx.ErrBadRequest("No name given"))
		return
	}
	if !ValidName(req.Name) {
		httpx.FailErr(c, httpx.ErrBadRequest("Invalid chat name"))
		return
	}

	chat := model.Chat{
		Name:      req.Name,
		ClusterID: member.ClusterID,
		Ready:     true,
	}
	if err := h.db.Create(&chat).Error; err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to create chat", err))
		return
	}

	h.notify(member.ClusterID)
	httpx.OKData(c, gin.H{"id": chat.ID})
}

type renameRequest struct {
	ChatID uint   `json:"chat_id"`
	Name   string `json:"name"`
}

// Rename changes a chat's name. The chat must belong to the caller's
// cluster.
// POST /api/edit_chat_name
func (h *Handler) Rename(c *gin.Context) {
	member := middleware.Member(c)

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.ChatID == 0 {
		httpx.FailErr(c, httpx.ErrBadRequest("No name given"))
		return
	}
	if !ValidName(req.Name) {
		httpx.FailErr(c, httpx.ErrBadRequest("Invalid chat name"))
		return
	}

	chat, appErr := h.ownedChat(req.ChatID, member)
	if appErr != nil {
		httpx.FailErr(c, appErr)
		return
	}

	if err := h.db.Model(chat).Update("name", req.Name).Error; err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to rename chat", err))
		return
	}

	h.notify(member.ClusterID)
	httpx.OK(c)
}

type deleteRequest struct {
	ChatID uint `json:"chat_id"`
}

// Delete removes a chat. Messages and tasks go with it through the
// foreign-key cascade.
// POST /api/delete_chat
func (h *Handler) Delete(c *gin.Context) {
	member := middleware.Member(c)

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == 0 {
		httpx.FailErr(c, httpx.ErrBadRequest("Got incomplete data"))
		return
	}

	chat, appErr := h.ownedChat(req.ChatID, member)
	if appErr != nil {
		httpx.FailErr(c, appErr)
		return
	}

	if err := h.db.Delete(chat).Error; err != nil {
		httpx.FailErr(c, httpx.ErrInternal("Failed to delete chat", err))
		return
	}

	h.notify(member.ClusterID)
	httpx.OK(c)
}

type sendMessageRequest struct {
	ChatID uint   `json:"chat_id"`
	Text   string `json:"text"`
}

// SendMessage appends a member message and schedules one orchestration
// loop for it. The ready check-and-set runs under a row lock so two
// concurrent sends to the same chat can never both start a loop.
// POST /api/send_message
func (h *Handler) SendMessage(c *gin.Context) {
	member := middleware.Member(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == 0 {
		httpx.FailErr(c, httpx.ErrBadRequest("Got incomplete data"))
		return
	}
	if !ValidMessage(req.Text) {
		httpx.FailErr(c, httpx.ErrBadRequest("The message is incorrect size"))
		return
	}

	var appErr *httpx.AppError
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var chat model.Chat
		err := lockForUpdate(tx).First(&chat, req.ChatID).Error
		if err != nil {
			appErr = httpx.ErrBadRequest("Invalid chat id")
			return err
		}
		if chat.ClusterID != member.ClusterID || !chat.Ready {
			appErr = httpx.ErrAccessDenied()
			return gorm.ErrInvalidData
		}

		msg := model.Message{
			Text:     req.Text,
			ChatID:   chat.ID,
			MemberID: &member.ID,
		}
		if err := tx.Create(&msg).Error; err != nil {
			appErr = httpx.ErrInternal("Failed to store message", err)
			return err
		}
		return tx.Model(&chat).Update("ready", false).Error
	})
	if err != nil {
		if appErr == nil {
			appErr = httpx.ErrInternal("Failed to store message", err)
		}
		httpx.FailErr(c, appErr)
		return
	}

	go h.orch.Run(context.Background(), req.ChatID, member.ID)

	h.notify(member.ClusterID)
	httpx.OK(c)
}

// lockForUpdate applies a row lock where the dialect has one. SQLite
// serializes writers on its own, so the transaction alone suffices there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ownedChat loads a chat and checks it belongs to the caller's cluster.
func (h *Handler) ownedChat(chatID uint, member *model.Member) (*model.Chat, *httpx.AppError) {
	var chat model.Chat
	if err := h.db.First(&chat, chatID).Error; err != nil {
		return nil, httpx.ErrBadRequest("Invalid chat id")
	}
	if chat.ClusterID != member.ClusterID {
		return nil, httpx.ErrAccessDenied()
	}
	return &chat, nil
}
