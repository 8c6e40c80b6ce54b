// Package cli holds the offline maintenance commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"habit-tracker/internal/config"
	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// PreviewSize is how many instances per group the console output shows.
const PreviewSize = 5

// OrphanCheckOptions holds the flags of the orphancheck command.
type OrphanCheckOptions struct {
	Format  string
	LogPath string
	Now     func() time.Time
}

// OrphanCheckResult is the json form of one run.
type OrphanCheckResult struct {
	CheckedAt time.Time            `json:"checkedAt"`
	Total     int                  `json:"total"`
	Users     []service.OrphanScan `json:"users"`
}

// NewOrphanCheckCommand creates the orphancheck command.
func NewOrphanCheckCommand() *cobra.Command {
	return newOrphanCheckCommand(&OrphanCheckOptions{Now: time.Now})
}

func newOrphanCheckCommand(opts *OrphanCheckOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphancheck <credentials-file> [user-id]",
		Short: "Report todos whose habit no longer exists",
		Long: `Scan recurring todos for references to deleted habits.

The credentials file is a dotenv file with DATABASE_URL. Without a user id
every user is scanned. A report of the first orphans found is appended to
the log file after the scan.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrphanCheck(cmd.Context(), opts, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.Flags().StringVar(&opts.LogPath, "log", "orphaned-instances.log", "file the report is appended to")

	return cmd
}

func runOrphanCheck(ctx context.Context, opts *OrphanCheckOptions, args []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadCredentials(args[0])
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	users := repository.NewUserRepository(db)
	detector := service.NewOrphanDetector(repository.NewInstanceRepository(db), repository.NewRecurrenceRepository(db))

	var userIDs []string
	if len(args) == 2 {
		userIDs = []string{args[1]}
	} else {
		all, err := users.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for _, u := range all {
			userIDs = append(userIDs, u.ID)
		}
	}

	result := OrphanCheckResult{CheckedAt: opts.Now().UTC(), Users: []service.OrphanScan{}}
	var orphans []model.TodoInstance
	for _, id := range userIDs {
		scan, err := detector.Scan(ctx, id)
		if err != nil {
			log.Printf("[warn] scan user %s: %v", id, err)
			continue
		}
		result.Users = append(result.Users, scan)
		result.Total += len(scan.Orphans)
		orphans = append(orphans, scan.Orphans...)

		if opts.Format == "text" {
			if err := writeScan(out, scan); err != nil {
				return err
			}
		}
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	}

	if err := appendReport(opts.LogPath, result.CheckedAt, orphans); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Printf("[info] orphan check done: %d users, %d orphans, report in %s", len(result.Users), result.Total, opts.LogPath)
	return nil
}

func writeScan(w io.Writer, scan service.OrphanScan) error {
	fmt.Fprintf(w, "Checking orphaned instances for user: %s\n", scan.UserID)
	if scan.Recurring == 0 {
		_, err := fmt.Fprint(w, "No instances with recurrenceId found.\n\n")
		return err
	}
	fmt.Fprintf(w, "Found %d valid recurrence patterns.\n", scan.Patterns)
	if len(scan.Orphans) == 0 {
		_, err := fmt.Fprint(w, "No orphaned instances found. All instances with recurrenceId have a matching recurrence pattern.\n\n")
		return err
	}

	fmt.Fprintf(w, "Found %d orphaned instances:\n", len(scan.Orphans))
	if err := service.WriteOrphanGroups(w, service.GroupByRecurrence(scan.Orphans), PreviewSize); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal orphaned instances: %d\n\n", len(scan.Orphans))
	return err
}

func appendReport(path string, at time.Time, orphans []model.TodoInstance) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := service.WriteOrphanReport(f, at, orphans, service.ReportLimit); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
