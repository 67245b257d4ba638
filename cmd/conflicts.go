package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ttms/app"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/store"
)

var conflictFlags struct {
	schedule int64
	track    string
	status   string
	limit    int
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Conflict history commands",
}

var conflictsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded track conflicts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := store.ConflictFilter{
			Resource: conflictFlags.track,
			Status:   model.ConflictStatus(conflictFlags.status),
			Limit:    conflictFlags.limit,
		}
		if conflictFlags.schedule > 0 {
			f.ScheduleID = &conflictFlags.schedule
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			conflicts, err := svc.Schedules.Conflicts(ctx, f)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "ID\tTRACK\tSEVERITY\tSCHEDULES\tFROM\tTO\tSTATUS\tDESCRIPTION")
			for _, c := range conflicts {
				first := "new"
				if c.ScheduleID1 != nil {
					first = strconv.FormatInt(*c.ScheduleID1, 10)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s/%d\t%s\t%s\t%s\t%s\n", c.ID, c.ResourceID, color.YellowString(string(c.Severity)),
					first, c.ScheduleID2, fmtTime(c.TimeStart), fmtTime(c.TimeEnd), c.Status, c.Description)
			}
			return tw.Flush()
		})
	},
}

func init() {
	f := conflictsLsCmd.Flags()
	f.Int64Var(&conflictFlags.schedule, "schedule", 0, "only conflicts involving this schedule")
	f.StringVar(&conflictFlags.track, "track", "", "track id")
	f.StringVar(&conflictFlags.status, "status", "", "detected or resolved")
	f.IntVar(&conflictFlags.limit, "limit", 50, "maximum rows")

	conflictsCmd.AddCommand(conflictsLsCmd)
	rootCmd.AddCommand(conflictsCmd)
}
