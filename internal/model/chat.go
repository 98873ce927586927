package model

// Chat is one conversation scoped to a cluster. Ready doubles as the
// orchestration mutual-exclusion flag: false means a loop owns the chat
// and send_message is rejected until it finishes.
type Chat struct {
	BaseModel
	Name      string `gorm:"type:varchar(256);not null" json:"name"`
	ClusterID uint   `gorm:"not null;index" json:"cluster_id"`
	Ready     bool   `gorm:"default:true" json:"ready"`

	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	Tasks    []Task    `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
}

// TableName specifies the table name for Chat
func (Chat) TableName() string {
	return "chats"
}
