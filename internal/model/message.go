package model

// Message is one chat message, ordered by creation time within its chat.
// A nil MemberID marks the message as authored by the AI agent.
// Messages are append-only and never mutated.
type Message struct {
	BaseModel
	Text     string `gorm:"type:text;not null" json:"text"`
	ChatID   uint   `gorm:"not null;index" json:"chat_id"`
	MemberID *uint  `gorm:"index" json:"member_id"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "messages"
}
