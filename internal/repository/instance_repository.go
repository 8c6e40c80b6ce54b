package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-tracker/internal/model"
)

// InstanceRepository stores dated todo instances.
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

func (r *InstanceRepository) Create(ctx context.Context, inst *model.TodoInstance) error {
	if inst.ID == "" {
		inst.ID = model.NewID()
	}
	if err := r.db.WithContext(ctx).Create(inst).Error; err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts inst unless a row with its id already exists and
// reports whether a row was written.
func (r *InstanceRepository) CreateIfAbsent(ctx context.Context, inst *model.TodoInstance) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(inst)
	if res.Error != nil {
		return false, fmt.Errorf("create instance: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *InstanceRepository) FindByID(ctx context.Context, userID, id string) (*model.TodoInstance, error) {
	var inst model.TodoInstance
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&inst).Error; err != nil {
		return nil, notFound(err)
	}
	return &inst, nil
}

// ListRange returns the instances dated within [start, end], ordered by date.
func (r *InstanceRepository) ListRange(ctx context.Context, userID, start, end string) ([]model.TodoInstance, error) {
	var items []model.TodoInstance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date ASC, created_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return items, nil
}

// DatesForRecurrence lists the dates already materialized for a pattern.
func (r *InstanceRepository) DatesForRecurrence(ctx context.Context, userID, patternID string) ([]string, error) {
	var dates []string
	if err := r.db.WithContext(ctx).Model(&model.TodoInstance{}).
		Where("user_id = ? AND recurrence_id = ?", userID, patternID).
		Pluck("date", &dates).Error; err != nil {
		return nil, fmt.Errorf("list recurrence dates: %w", err)
	}
	return dates, nil
}

func (r *InstanceRepository) ListByRecurrence(ctx context.Context, userID, patternID string) ([]model.TodoInstance, error) {
	var items []model.TodoInstance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND recurrence_id = ?", userID, patternID).
		Order("date ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list recurrence instances: %w", err)
	}
	return items, nil
}

// ListRecurring returns every instance flagged as recurring.
func (r *InstanceRepository) ListRecurring(ctx context.Context, userID string) ([]model.TodoInstance, error) {
	var items []model.TodoInstance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_recurring = ?", userID, true).
		Order("recurrence_id ASC, date ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list recurring instances: %w", err)
	}
	return items, nil
}

func (r *InstanceRepository) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	res := r.db.WithContext(ctx).Model(&model.TodoInstance{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("completed", completed)
	if res.Error != nil {
		return fmt.Errorf("update instance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rename changes name and date of a single instance.
func (r *InstanceRepository) Rename(ctx context.Context, userID, id, name, date string, editedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.TodoInstance{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(map[string]interface{}{
			"name":      name,
			"date":      date,
			"edited_at": editedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update instance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Move renames an instance, redates it and gives it targetID. When targetID
// is already taken the row gets a fresh random id instead. It returns the
// id the row ends up with.
func (r *InstanceRepository) Move(ctx context.Context, userID, id, targetID, name, date string, editedAt time.Time) (string, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if targetID != id {
			var taken int64
			if err := tx.Model(&model.TodoInstance{}).Where("id = ?", targetID).Count(&taken).Error; err != nil {
				return fmt.Errorf("check instance id: %w", err)
			}
			if taken > 0 {
				targetID = model.NewID()
			}
		}
		res := tx.Model(&model.TodoInstance{}).
			Where("user_id = ? AND id = ?", userID, id).
			Updates(map[string]interface{}{
				"id":        targetID,
				"name":      name,
				"date":      date,
				"edited_at": editedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("move instance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return targetID, nil
}

func (r *InstanceRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.TodoInstance{})
	if res.Error != nil {
		return fmt.Errorf("delete instance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DetachRecurrence turns the given instances into one-off todos in a single
// transaction.
func (r *InstanceRepository) DetachRecurrence(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TodoInstance{}).
			Where("user_id = ? AND id IN ?", userID, ids).
			Updates(map[string]interface{}{
				"is_recurring":  false,
				"recurrence_id": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("detach instances: %w", err)
	}
	return affected, nil
}
