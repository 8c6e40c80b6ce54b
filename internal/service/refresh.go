package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

// RefreshCoordinator materializes every pattern of a user for a window.
type RefreshCoordinator struct {
	patterns     *repository.RecurrenceRepository
	materializer *Materializer
	concurrency  int
}

func NewRefreshCoordinator(patterns *repository.RecurrenceRepository, materializer *Materializer, concurrency int) *RefreshCoordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RefreshCoordinator{patterns: patterns, materializer: materializer, concurrency: concurrency}
}

// Refresh runs the materializer for each of the user's patterns in parallel
// and waits for all of them. One failing pattern does not stop the others and
// nothing already created is undone. The first failure is returned.
func (c *RefreshCoordinator) Refresh(ctx context.Context, userID string, windowStart time.Time, windowEnd *time.Time) error {
	patterns, err := c.patterns.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		return nil
	}

	sem := make(chan struct{}, c.concurrency)
	errs := make([]error, len(patterns))
	var wg sync.WaitGroup

	for i, p := range patterns {
		wg.Add(1)
		go func(i int, p model.RecurrencePattern) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if _, err := c.materializer.Materialize(ctx, userID, p, windowStart, windowEnd); err != nil {
				errs[i] = fmt.Errorf("materialize %s: %w", p.ID, err)
			}
		}(i, p)
	}
	wg.Wait()

	var first error
	for _, err := range errs {
		if err != nil {
			first = err
			break
		}
	}
	if first != nil {
		log.Printf("[warn] refresh user %s: %v", userID, errors.Join(errs...))
	}
	return first
}

// RefreshAll refreshes every known user. Failures are logged per user and the
// number of users that failed is returned.
func (c *RefreshCoordinator) RefreshAll(ctx context.Context, users *repository.UserRepository, windowStart time.Time, windowEnd *time.Time) (int, error) {
	all, err := users.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, u := range all {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		if err := c.Refresh(ctx, u.ID, windowStart, windowEnd); err != nil {
			failed++
		}
	}
	return failed, nil
}
