package users

import "time"

// User is the local record of an identity owned by the external provider.
type User struct {
	ID          uint   `gorm:"primaryKey"`
	ExternalID  string `gorm:"size:191;uniqueIndex;not null"`
	Email       string `gorm:"size:320"`
	Username    string `gorm:"size:100"`
	DisplayName string `gorm:"size:200"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
