package model

// Task is one unit of dispatched code awaiting execution on a target
// member. Finished is terminal; there is no retry. A task forced to
// completion by the sweep carries a synthetic failure text in ReturnText.
type Task struct {
	BaseModel
	Text       string `gorm:"type:text;not null" json:"text"`
	ChatID     uint   `gorm:"not null;index" json:"chat_id"`
	MemberID   uint   `gorm:"not null;index" json:"member_id"`
	Finished   bool   `gorm:"default:false;index" json:"finished"`
	ReturnText string `gorm:"type:text" json:"return_text"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}

// Synthetic results written by the sweep when a task never completes.
const (
	TaskResultTimeout = "Error: the task execution timed out before the member reported a result"
	TaskResultOffline = "Error: the target member went offline before running the task"
)
