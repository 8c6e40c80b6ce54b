package model

import "time"

// User owns a partition of instances and recurrence patterns.
type User struct {
	ID         string `gorm:"primaryKey;size:36"`
	TelegramID *int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
