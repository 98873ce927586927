package model

import "time"

// Member is one machine belonging to exactly one cluster at a time.
// TokenHash is the HMAC-SHA-256 of the member's auth token; the plaintext
// token is only ever returned once, by /auth.
type Member struct {
	BaseModel
	TokenHash  string    `gorm:"type:varchar(256);uniqueIndex;not null" json:"-"`
	About      string    `gorm:"type:varchar(500)" json:"about"`
	ClusterID  uint      `gorm:"not null;index" json:"cluster_id"`
	LastOnline time.Time `gorm:"not null" json:"last_online"`
}

// TableName specifies the table name for Member
func (Member) TableName() string {
	return "members"
}
