package service

import (
	"context"
	"sort"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

// OrphanDetector finds recurring instances whose pattern no longer exists.
type OrphanDetector struct {
	instances *repository.InstanceRepository
	patterns  *repository.RecurrenceRepository
}

func NewOrphanDetector(instances *repository.InstanceRepository, patterns *repository.RecurrenceRepository) *OrphanDetector {
	return &OrphanDetector{instances: instances, patterns: patterns}
}

// OrphanScan is the outcome of checking one user's partition.
type OrphanScan struct {
	UserID    string               `json:"userId"`
	Recurring int                  `json:"recurring"`
	Patterns  int                  `json:"patterns"`
	Orphans   []model.TodoInstance `json:"orphans"`
}

// FindOrphans returns the user's recurring instances that point at a pattern
// id which is not among the user's current patterns. It only reads.
func (d *OrphanDetector) FindOrphans(ctx context.Context, userID string) ([]model.TodoInstance, error) {
	scan, err := d.Scan(ctx, userID)
	if err != nil {
		return nil, err
	}
	return scan.Orphans, nil
}

// Scan is FindOrphans with the counts it was computed from.
func (d *OrphanDetector) Scan(ctx context.Context, userID string) (OrphanScan, error) {
	recurring, err := d.instances.ListRecurring(ctx, userID)
	if err != nil {
		return OrphanScan{}, err
	}
	ids, err := d.patterns.IDs(ctx, userID)
	if err != nil {
		return OrphanScan{}, err
	}

	valid := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		valid[id] = struct{}{}
	}

	scan := OrphanScan{UserID: userID, Recurring: len(recurring), Patterns: len(ids)}
	for _, inst := range recurring {
		if inst.RecurrenceID == nil {
			continue
		}
		if _, ok := valid[*inst.RecurrenceID]; !ok {
			scan.Orphans = append(scan.Orphans, inst)
		}
	}
	return scan, nil
}

// OrphanGroup holds the orphans left behind by one deleted pattern.
type OrphanGroup struct {
	RecurrenceID string               `json:"recurrenceId"`
	Instances    []model.TodoInstance `json:"instances"`
}

// GroupByRecurrence groups instances by recurrence id. Groups are ordered by
// id and instances within a group by date, then id.
func GroupByRecurrence(instances []model.TodoInstance) []OrphanGroup {
	byID := make(map[string][]model.TodoInstance)
	for _, inst := range instances {
		key := ""
		if inst.RecurrenceID != nil {
			key = *inst.RecurrenceID
		}
		byID[key] = append(byID[key], inst)
	}

	groups := make([]OrphanGroup, 0, len(byID))
	for id, items := range byID {
		sort.Slice(items, func(i, j int) bool {
			if items[i].Date != items[j].Date {
				return items[i].Date < items[j].Date
			}
			return items[i].ID < items[j].ID
		})
		groups = append(groups, OrphanGroup{RecurrenceID: id, Instances: items})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].RecurrenceID < groups[j].RecurrenceID })
	return groups
}

// MarkOrphansNonRecurring turns the given orphans into one-off todos. Ids
// that are not currently orphaned are ignored; no ids means every orphan.
func (d *OrphanDetector) MarkOrphansNonRecurring(ctx context.Context, userID string, ids []string) (int64, error) {
	orphans, err := d.FindOrphans(ctx, userID)
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var fix []string
	for _, o := range orphans {
		if _, ok := wanted[o.ID]; ok || len(ids) == 0 {
			fix = append(fix, o.ID)
		}
	}
	return d.instances.DetachRecurrence(ctx, userID, fix)
}
