package model

import "time"

// RecurrencePattern binds a recurrence rule to a habit name. Instances point
// at it through TodoInstance.RecurrenceID without any foreign key.
type RecurrencePattern struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    string     `gorm:"size:36;not null;index" json:"-"`
	Name      string     `gorm:"not null" json:"name"`
	RRule     string     `gorm:"column:rrule;not null" json:"rrule"`
	StartsOn  string     `gorm:"size:10" json:"startsOn,omitempty"` // empty on legacy rows
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt"`
}
