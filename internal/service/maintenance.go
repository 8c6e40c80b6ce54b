package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"habit-tracker/internal/events"
	"habit-tracker/internal/recurrence"
	"habit-tracker/internal/repository"
)

// Maintenance holds the background jobs that keep every user's data current.
type Maintenance struct {
	users     *repository.UserRepository
	refresher *RefreshCoordinator
	detector  *OrphanDetector
	publisher events.Publisher
	aheadDays int
	now       func() time.Time
}

func NewMaintenance(users *repository.UserRepository, refresher *RefreshCoordinator, detector *OrphanDetector, publisher events.Publisher, aheadDays int) *Maintenance {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Maintenance{
		users:     users,
		refresher: refresher,
		detector:  detector,
		publisher: publisher,
		aheadDays: aheadDays,
		now:       time.Now,
	}
}

// RefreshUpcoming materializes today and the next aheadDays days for every
// user.
func (m *Maintenance) RefreshUpcoming(ctx context.Context) error {
	start := recurrence.StartOfDay(m.now())
	end := start.AddDate(0, 0, m.aheadDays)
	failed, err := m.refresher.RefreshAll(ctx, m.users, start, &end)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("refresh failed for %d users", failed)
	}
	return nil
}

// ScanOrphans runs the orphan detector for every user and publishes a summary
// for each user that has orphans. A failing user is logged and skipped.
func (m *Maintenance) ScanOrphans(ctx context.Context) error {
	users, err := m.users.ListAll(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, u := range users {
		orphans, err := m.detector.FindOrphans(ctx, u.ID)
		if err != nil {
			log.Printf("[warn] orphan scan user %s: %v", u.ID, err)
			continue
		}
		if len(orphans) == 0 {
			continue
		}
		total += len(orphans)

		byPattern := make(map[string]int)
		for _, g := range GroupByRecurrence(orphans) {
			byPattern[g.RecurrenceID] = len(g.Instances)
		}
		log.Printf("[warn] user %s has %d orphaned instances in %d series", u.ID, len(orphans), len(byPattern))

		event := events.OrphansDetected{
			UserID:     u.ID,
			Count:      len(orphans),
			ByPattern:  byPattern,
			DetectedAt: m.now().UTC(),
		}
		if err := m.publisher.Publish(ctx, events.OrphansDetectedQueue, event); err != nil {
			log.Printf("[warn] publish %s: %v", events.OrphansDetectedQueue, err)
		}
	}
	log.Printf("[info] orphan scan: %d users, %d orphaned instances", len(users), total)
	return nil
}
