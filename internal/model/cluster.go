package model

// Cluster is the identity shared by a group of member machines. Knowledge
// of the join token grants membership.
type Cluster struct {
	BaseModel
	Token string `gorm:"type:varchar(256);uniqueIndex;not null" json:"-"`

	Members []Member `gorm:"foreignKey:ClusterID" json:"members,omitempty"`
	Chats   []Chat   `gorm:"foreignKey:ClusterID" json:"chats,omitempty"`
}

// TableName specifies the table name for Cluster
func (Cluster) TableName() string {
	return "clusters"
}
