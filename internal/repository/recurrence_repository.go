package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"habit-tracker/internal/model"
)

// RecurrenceRepository stores recurrence patterns and performs the
// multi-document writes that span patterns and their instances.
type RecurrenceRepository struct {
	db *gorm.DB
}

func NewRecurrenceRepository(db *gorm.DB) *RecurrenceRepository {
	return &RecurrenceRepository{db: db}
}

func (r *RecurrenceRepository) Create(ctx context.Context, p *model.RecurrencePattern) error {
	if p.ID == "" {
		p.ID = model.NewID()
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create recurrence: %w", err)
	}
	return nil
}

func (r *RecurrenceRepository) FindByID(ctx context.Context, userID, id string) (*model.RecurrencePattern, error) {
	var p model.RecurrencePattern
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListByUser returns the user's patterns, newest first.
func (r *RecurrenceRepository) ListByUser(ctx context.Context, userID string) ([]model.RecurrencePattern, error) {
	var patterns []model.RecurrencePattern
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Find(&patterns).Error; err != nil {
		return nil, fmt.Errorf("list recurrences: %w", err)
	}
	return patterns, nil
}

// IDs returns the ids of every pattern the user currently has.
func (r *RecurrenceRepository) IDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.RecurrencePattern{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list recurrence ids: %w", err)
	}
	return ids, nil
}

// DeleteCascade removes the pattern and, when withInstances is set, every
// instance referencing it. All deletes commit together or not at all.
// It returns the number of instances removed.
func (r *RecurrenceRepository) DeleteCascade(ctx context.Context, userID, patternID string, withInstances bool) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, patternID).Delete(&model.RecurrencePattern{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if !withInstances {
			return nil
		}

		var ids []string
		if err := tx.Model(&model.TodoInstance{}).
			Where("user_id = ? AND recurrence_id = ?", userID, patternID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res = tx.Where("user_id = ? AND id IN ?", userID, ids).Delete(&model.TodoInstance{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete recurrence: %w", err)
	}
	return removed, nil
}

// UpdateSeries rewrites a pattern and drops its open instances dated on or
// after fromDate so they can be re-derived from the new rule. Completed
// instances in that range are kept and renamed. It returns the number of
// instances dropped.
func (r *RecurrenceRepository) UpdateSeries(ctx context.Context, p *model.RecurrencePattern, fromDate string, editedAt time.Time) (int64, error) {
	var dropped int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.RecurrencePattern{}).
			Where("user_id = ? AND id = ?", p.UserID, p.ID).
			Updates(map[string]interface{}{
				"name":      p.Name,
				"rrule":     p.RRule,
				"starts_on": p.StartsOn,
				"edited_at": editedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		res = tx.Where("user_id = ? AND recurrence_id = ? AND date >= ? AND completed = ?", p.UserID, p.ID, fromDate, false).
			Delete(&model.TodoInstance{})
		if res.Error != nil {
			return res.Error
		}
		dropped = res.RowsAffected

		return tx.Model(&model.TodoInstance{}).
			Where("user_id = ? AND recurrence_id = ? AND date >= ?", p.UserID, p.ID, fromDate).
			Updates(map[string]interface{}{"name": p.Name, "edited_at": editedAt}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("update recurrence: %w", err)
	}
	p.EditedAt = &editedAt
	return dropped, nil
}
