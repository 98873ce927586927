package liveness

import (
	"time"

	"clusterchat/internal/model"

	"gorm.io/gorm"
)

// Touch refreshes a member's last-seen timestamp. Called on every
// authenticated request.
func Touch(db *gorm.DB, memberID uint, now time.Time) error {
	return db.Model(&model.Member{}).
		Where("id = ?", memberID).
		Update("last_online", now).Error
}

// Stale reports whether a member has not been seen for longer than the
// given threshold.
func Stale(member *model.Member, threshold time.Duration, now time.Time) bool {
	return now.Sub(member.LastOnline) > threshold
}
