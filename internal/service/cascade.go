package service

import (
	"context"
	"log"
	"time"

	"habit-tracker/internal/events"
	"habit-tracker/internal/repository"
)

// CascadingDeleter removes a pattern together with its instances.
type CascadingDeleter struct {
	patterns  *repository.RecurrenceRepository
	publisher events.Publisher
}

func NewCascadingDeleter(patterns *repository.RecurrenceRepository, publisher events.Publisher) *CascadingDeleter {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &CascadingDeleter{patterns: patterns, publisher: publisher}
}

// DeletePattern deletes the pattern and, if alsoDeleteInstances is set, every
// instance that references it. Either every delete persists or none does.
// Instances left behind when alsoDeleteInstances is false become orphans.
func (d *CascadingDeleter) DeletePattern(ctx context.Context, userID, patternID string, alsoDeleteInstances bool) error {
	removed, err := d.patterns.DeleteCascade(ctx, userID, patternID, alsoDeleteInstances)
	if err != nil {
		return err
	}
	log.Printf("[info] user %s deleted pattern %s with %d instances", userID, patternID, removed)

	event := events.SeriesDeleted{
		UserID:           userID,
		PatternID:        patternID,
		InstancesDeleted: removed,
		DeletedAt:        time.Now().UTC(),
	}
	if err := d.publisher.Publish(ctx, events.SeriesDeletedQueue, event); err != nil {
		log.Printf("[warn] publish %s: %v", events.SeriesDeletedQueue, err)
	}
	return nil
}
