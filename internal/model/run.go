package model

import "gorm.io/datatypes"

// RunStatus represents the state of one orchestration loop.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusAborted RunStatus = "aborted"
)

// Run records one orchestration loop over a chat. A row stuck in
// "running" after a server restart marks a loop that was abandoned with
// its chat left busy, so an operator can find and release it.
type Run struct {
	BaseModel
	ChatID    uint           `gorm:"not null;index" json:"chat_id"`
	RequestID string         `gorm:"type:varchar(64);index" json:"request_id"`
	Status    RunStatus      `gorm:"type:varchar(16);default:'running';index" json:"status"`
	Rounds    int            `gorm:"default:0" json:"rounds"`
	TaskIDs   datatypes.JSON `gorm:"type:json" json:"task_ids"`
}

// TableName specifies the table name for Run
func (Run) TableName() string {
	return "runs"
}
