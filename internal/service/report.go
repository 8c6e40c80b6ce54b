package service

import (
	"fmt"
	"io"
	"time"

	"habit-tracker/internal/model"
)

// ReportLimit caps how many orphans one report lists.
const ReportLimit = 100

// WriteOrphanGroups prints each group with at most preview instances. A
// preview of zero or less prints every instance.
func WriteOrphanGroups(w io.Writer, groups []OrphanGroup, preview int) error {
	for _, g := range groups {
		if _, err := fmt.Fprintf(w, "\nRecurrenceId: %s (%d instances):\n", g.RecurrenceID, len(g.Instances)); err != nil {
			return err
		}
		shown := g.Instances
		if preview > 0 && len(shown) > preview {
			shown = shown[:preview]
		}
		for _, inst := range shown {
			if _, err := fmt.Fprintf(w, "  - ID: %s, Name: %s, Date: %s, Completed: %t\n", inst.ID, inst.Name, inst.Date, inst.Completed); err != nil {
				return err
			}
		}
		if rest := len(g.Instances) - len(shown); rest > 0 {
			if _, err := fmt.Fprintf(w, "  ... and %d more instances\n", rest); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteOrphanReport writes a timestamped report of the first limit orphans,
// grouped by recurrence id.
func WriteOrphanReport(w io.Writer, at time.Time, orphans []model.TodoInstance, limit int) error {
	if _, err := fmt.Fprintf(w, "Orphaned Instances Check - %s\n\n", at.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if len(orphans) == 0 {
		_, err := fmt.Fprintln(w, "No orphaned instances found.")
		return err
	}

	logged := orphans
	if limit > 0 && len(logged) > limit {
		logged = logged[:limit]
	}
	if _, err := fmt.Fprintf(w, "Total orphaned instances found: %d\nLogging first %d instances:\n", len(orphans), len(logged)); err != nil {
		return err
	}
	if err := WriteOrphanGroups(w, GroupByRecurrence(logged), 0); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
