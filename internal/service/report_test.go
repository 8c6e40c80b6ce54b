package service

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/model"
)

func orphan(id, recurrenceID, date string) model.TodoInstance {
	return model.TodoInstance{ID: id, Name: "Gym", Date: date, IsRecurring: true, RecurrenceID: &recurrenceID}
}

func TestWriteOrphanGroupsPreview(t *testing.T) {
	var items []model.TodoInstance
	for i := 1; i <= 7; i++ {
		items = append(items, orphan(fmt.Sprintf("i%d", i), "p1", fmt.Sprintf("2025-01-%02d", i)))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrphanGroups(&buf, GroupByRecurrence(items), 5))

	out := buf.String()
	assert.Contains(t, out, "RecurrenceId: p1 (7 instances):\n")
	assert.Contains(t, out, "  - ID: i5, Name: Gym, Date: 2025-01-05, Completed: false\n")
	assert.NotContains(t, out, "ID: i6")
	assert.Contains(t, out, "  ... and 2 more instances\n")
}

func TestWriteOrphanReport(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	items := []model.TodoInstance{
		orphan("b", "p2", "2025-01-02"),
		orphan("a", "p1", "2025-01-01"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrphanReport(&buf, at, items, ReportLimit))

	want := "Orphaned Instances Check - 2025-01-02T03:04:05Z\n\n" +
		"Total orphaned instances found: 2\n" +
		"Logging first 2 instances:\n" +
		"\nRecurrenceId: p1 (1 instances):\n" +
		"  - ID: a, Name: Gym, Date: 2025-01-01, Completed: false\n" +
		"\nRecurrenceId: p2 (1 instances):\n" +
		"  - ID: b, Name: Gym, Date: 2025-01-02, Completed: false\n" +
		"\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteOrphanReportCapsEntries(t *testing.T) {
	var items []model.TodoInstance
	for i := 0; i < 150; i++ {
		items = append(items, orphan(fmt.Sprintf("i%03d", i), "p1", "2025-01-01"))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrphanReport(&buf, time.Now(), items, ReportLimit))

	out := buf.String()
	assert.Contains(t, out, "Total orphaned instances found: 150\n")
	assert.Contains(t, out, "Logging first 100 instances:\n")
	assert.Equal(t, 100, strings.Count(out, "  - ID: "))
}

func TestWriteOrphanReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOrphanReport(&buf, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil, ReportLimit))
	assert.Equal(t, "Orphaned Instances Check - 2025-01-01T00:00:00Z\n\nNo orphaned instances found.\n", buf.String())
}
