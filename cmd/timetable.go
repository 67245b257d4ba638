package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ttms/app"
	"github.com/kilianp07/ttms/core/timetable"
)

var ttFlags struct {
	name, version, effective, expiry, notes string
}

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Timetable commands",
}

var timetableCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a timetable",
	RunE:  runTimetableCreate,
}

var timetableLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List timetables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			tts, err := svc.Timetables.List(ctx)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "ID\tNAME\tVERSION\tEFFECTIVE\tEXPIRY\tSTATUS")
			for _, t := range tts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Version,
					t.EffectiveDate.Format("2006-01-02"), t.ExpiryDate.Format("2006-01-02"), t.Status)
			}
			return tw.Flush()
		})
	},
}

func init() {
	f := timetableCreateCmd.Flags()
	f.StringVar(&ttFlags.name, "name", "", "timetable name")
	f.StringVar(&ttFlags.version, "version", "1", "version label")
	f.StringVar(&ttFlags.effective, "effective", "", "effective date (YYYY-MM-DD)")
	f.StringVar(&ttFlags.expiry, "expiry", "", "expiry date (YYYY-MM-DD)")
	f.StringVar(&ttFlags.notes, "notes", "", "free text notes")
	_ = timetableCreateCmd.MarkFlagRequired("name")
	_ = timetableCreateCmd.MarkFlagRequired("effective")
	_ = timetableCreateCmd.MarkFlagRequired("expiry")

	timetableCmd.AddCommand(timetableCreateCmd, timetableLsCmd)
	rootCmd.AddCommand(timetableCmd)
}

func runTimetableCreate(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	eff, err := parseTime("effective", ttFlags.effective+"T00:00")
	if err != nil {
		return err
	}
	exp, err := parseTime("expiry", ttFlags.expiry+"T00:00")
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		id, err := svc.Timetables.Create(ctx, actor, timetable.CreateRequest{
			Name:          ttFlags.name,
			Version:       ttFlags.version,
			EffectiveDate: eff,
			ExpiryDate:    exp,
			Notes:         ttFlags.notes,
		})
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "created timetable %d", id)
		return nil
	})
}
