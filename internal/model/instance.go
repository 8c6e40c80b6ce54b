package model

import (
	"time"

	"github.com/google/uuid"
)

// instanceNamespace seeds the deterministic ids of materialized instances.
var instanceNamespace = uuid.MustParse("6f1c3a52-9d0e-4b7a-8a43-2f5e9c1d7b60")

// TodoInstance is a single dated occurrence of a todo, either one-off or
// materialized from a RecurrencePattern.
type TodoInstance struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string     `gorm:"size:36;not null;index:idx_instances_user_date,priority:1" json:"-"`
	Name         string     `gorm:"not null" json:"name"`
	Date         string     `gorm:"size:10;not null;index:idx_instances_user_date,priority:2" json:"date"`
	Completed    bool       `gorm:"default:false" json:"completed"`
	IsRecurring  bool       `gorm:"default:false;index" json:"isRecurring"`
	RecurrenceID *string    `gorm:"size:36;index" json:"recurrenceId"`
	CreatedAt    time.Time  `json:"createdAt"`
	EditedAt     *time.Time `json:"editedAt"`
}

// NewID returns a random identifier for one-off documents.
func NewID() string {
	return uuid.NewString()
}

// InstanceID derives the id of the instance a pattern materializes on date.
// The same inputs always yield the same id, so repeated or concurrent
// materialization of one date collapses onto one row.
func InstanceID(userID, patternID, date string) string {
	return uuid.NewSHA1(instanceNamespace, []byte(userID+"/"+patternID+"/"+date)).String()
}
