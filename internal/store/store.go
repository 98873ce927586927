package store

import (
	"clusterchat/internal/model"

	"gorm.io/gorm"
)

// DB adapts the gorm database to the narrow store interfaces the ledger
// and the orchestrator are written against.
type DB struct {
	g *gorm.DB
}

// New wraps a gorm handle.
func New(g *gorm.DB) *DB {
	return &DB{g: g}
}

// Gorm exposes the underlying handle for handlers that need transactions.
func (d *DB) Gorm() *gorm.DB {
	return d.g
}

func (d *DB) CreateTask(task *model.Task) error {
	return d.g.Create(task).Error
}

func (d *DB) TaskByID(id uint) (*model.Task, error) {
	var task model.Task
	if err := d.g.First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (d *DB) SaveTask(task *model.Task) error {
	return d.g.Save(task).Error
}

func (d *DB) MemberByID(id uint) (*model.Member, error) {
	var member model.Member
	if err := d.g.First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (d *DB) ChatByID(id uint) (*model.Chat, error) {
	var chat model.Chat
	if err := d.g.First(&chat, id).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

// RecentMessages returns the last limit messages of a chat, oldest first.
func (d *DB) RecentMessages(chatID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := d.g.Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (d *DB) MembersByCluster(clusterID uint) ([]model.Member, error) {
	var members []model.Member
	if err := d.g.Where("cluster_id = ?", clusterID).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (d *DB) CreateMessage(message *model.Message) error {
	return d.g.Create(message).Error
}

func (d *DB) SetChatReady(chatID uint, ready bool) error {
	return d.g.Model(&model.Chat{}).
		Where("id = ?", chatID).
		Update("ready", ready).Error
}

func (d *DB) CreateRun(run *model.Run) error {
	return d.g.Create(run).Error
}

func (d *DB) SaveRun(run *model.Run) error {
	return d.g.Save(run).Error
}
