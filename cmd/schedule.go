package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ttms/app"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/schedule"
	"github.com/kilianp07/ttms/pkg/export"
)

var schedFlags struct {
	file                     string
	timetable, train, route  int64
	departure, arrival, date string
	track, platform, crew    string
	days                     string
	priority                 int
	temporary                bool
	trainType, status        string
	reason                   string
	format, output           string
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Train schedule commands",
}

var scheduleLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List active schedules",
	RunE:  runScheduleLs,
}

var scheduleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export active schedules as CSV, JSON or an HTML delay chart",
	RunE:  runScheduleExport,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Admit a schedule after checking track conflicts",
	Long: "Admit a schedule from flags, or from a JSON request with -f (use - for stdin). " +
		"The schedule is rejected when its track is occupied during its run.",
	RunE: runScheduleAdd,
}

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change times or assignments of a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleUpdate,
}

var scheduleCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a scheduled run",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleCancel,
}

var scheduleRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a schedule with its stops and positions",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRm,
}

func init() {
	for _, c := range []*cobra.Command{scheduleLsCmd, scheduleExportCmd} {
		f := c.Flags()
		f.Int64Var(&schedFlags.timetable, "timetable", 0, "timetable id")
		f.StringVar(&schedFlags.date, "date", "", "schedule date (YYYY-MM-DD)")
		f.StringVar(&schedFlags.trainType, "type", "", "train type code")
		f.StringVar(&schedFlags.status, "status", "", "live position status")
	}
	scheduleExportCmd.Flags().StringVar(&schedFlags.format, "format", "csv", "csv, json, or html for a delay chart")
	scheduleExportCmd.Flags().StringVarP(&schedFlags.output, "output", "o", "", "output file, stdout when empty")

	add := scheduleAddCmd.Flags()
	add.StringVarP(&schedFlags.file, "file", "f", "", "JSON request file")
	add.Int64Var(&schedFlags.timetable, "timetable", 0, "timetable id")
	add.Int64Var(&schedFlags.train, "train", 0, "train id")
	add.Int64Var(&schedFlags.route, "route", 0, "route id")
	add.BoolVar(&schedFlags.temporary, "temporary", false, "mark the schedule as temporary")
	for _, c := range []*cobra.Command{scheduleAddCmd, scheduleUpdateCmd} {
		f := c.Flags()
		f.StringVar(&schedFlags.departure, "departure", "", "departure time, UTC")
		f.StringVar(&schedFlags.arrival, "arrival", "", "arrival time, UTC")
		f.StringVar(&schedFlags.track, "track", "", "track assignment")
		f.StringVar(&schedFlags.platform, "platform", "", "platform assignment")
		f.StringVar(&schedFlags.crew, "crew", "", "crew assignment")
		f.StringVar(&schedFlags.days, "days", "", "operating days mask, Monday first, e.g. 1111100")
		f.IntVar(&schedFlags.priority, "priority", 0, "priority level, 1 is highest")
	}

	scheduleCancelCmd.Flags().StringVar(&schedFlags.reason, "reason", "", "cancellation reason")
	_ = scheduleCancelCmd.MarkFlagRequired("reason")

	scheduleCmd.AddCommand(scheduleLsCmd, scheduleExportCmd, scheduleAddCmd, scheduleUpdateCmd, scheduleCancelCmd, scheduleRmCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func filterFromFlags() (schedule.Filter, error) {
	var f schedule.Filter
	if schedFlags.timetable > 0 {
		f.TimetableID = &schedFlags.timetable
	}
	if schedFlags.date != "" {
		d, err := parseTime("date", schedFlags.date+"T00:00")
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	f.TrainType = schedFlags.trainType
	f.Status = model.PositionStatus(schedFlags.status)
	return f, nil
}

func runScheduleExport(cmd *cobra.Command, args []string) error {
	write := export.WriteCSV
	switch schedFlags.format {
	case "csv":
	case "json":
		write = export.WriteJSON
	case "html":
		write = export.WriteDelayChart
	default:
		return fmt.Errorf("unknown format %q", schedFlags.format)
	}
	f, err := filterFromFlags()
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		views, err := svc.Schedules.ListActive(ctx, f)
		if err != nil {
			return err
		}
		if schedFlags.output == "" {
			return write(cmd.OutOrStdout(), views)
		}
		out, err := os.Create(schedFlags.output)
		if err != nil {
			return err
		}
		if err := write(out, views); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}

func runScheduleLs(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags()
	if err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		views, err := svc.Schedules.ListActive(ctx, f)
		if err != nil {
			return err
		}
		tw := newTable(cmd.OutOrStdout(), "ID\tTRAIN\tTYPE\tROUTE\tDEPARTURE\tARRIVAL\tTRACK\tSTATUS\tDELAY")
		for _, v := range views {
			status := string(v.State)
			if v.PositionStatus != "" {
				status = string(v.PositionStatus)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n", v.ID, v.TrainNumber, v.TrainType, v.RouteCode,
				fmtTime(v.DepartureTime), fmtTime(v.ArrivalTime), deref(v.TrackAssignment), statusColor(status), v.DelayMinutes)
		}
		return tw.Flush()
	})
}

func readRequest(path string) (schedule.CreateRequest, error) {
	var req schedule.CreateRequest
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode %s: %w", path, err)
	}
	return req, nil
}

// patchFromFlags collects the changed schedule flags. Only flags set on the
// command line are applied.
func patchFromFlags(cmd *cobra.Command) (schedule.Patch, error) {
	var p schedule.Patch
	flags := cmd.Flags()
	if flags.Changed("departure") {
		t, err := parseTime("departure", schedFlags.departure)
		if err != nil {
			return p, err
		}
		p.DepartureTime = &t
	}
	if flags.Changed("arrival") {
		t, err := parseTime("arrival", schedFlags.arrival)
		if err != nil {
			return p, err
		}
		p.ArrivalTime = &t
	}
	if flags.Changed("track") {
		p.TrackAssignment = &schedFlags.track
	}
	if flags.Changed("platform") {
		p.PlatformAssignment = &schedFlags.platform
	}
	if flags.Changed("crew") {
		p.CrewAssignment = &schedFlags.crew
	}
	if flags.Changed("priority") {
		p.PriorityLevel = &schedFlags.priority
	}
	if flags.Changed("days") {
		d, err := model.ParseOperatingDays(strings.TrimSpace(schedFlags.days))
		if err != nil {
			return p, err
		}
		p.OperatingDays = &d
	}
	return p, nil
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	var req schedule.CreateRequest
	if schedFlags.file != "" {
		if req, err = readRequest(schedFlags.file); err != nil {
			return err
		}
	} else {
		p, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}
		req = schedule.CreateRequest{
			TimetableID:        schedFlags.timetable,
			TrainID:            schedFlags.train,
			RouteID:            schedFlags.route,
			OperatingDays:      p.OperatingDays,
			TrackAssignment:    p.TrackAssignment,
			PlatformAssignment: p.PlatformAssignment,
			CrewAssignment:     p.CrewAssignment,
			PriorityLevel:      p.PriorityLevel,
			IsTemporary:        schedFlags.temporary,
		}
		if p.DepartureTime != nil {
			req.DepartureTime = *p.DepartureTime
		}
		if p.ArrivalTime != nil {
			req.ArrivalTime = *p.ArrivalTime
		}
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		id, err := svc.Schedules.AddTrainSchedule(ctx, actor, req)
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "admitted schedule %d", id)
		return nil
	})
}

func runScheduleUpdate(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	p, err := patchFromFlags(cmd)
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		s, err := svc.Schedules.UpdateSchedule(ctx, actor, id, p)
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "updated schedule %d: %s to %s on track %s",
			s.ID, fmtTime(s.DepartureTime), fmtTime(s.ArrivalTime), deref(s.TrackAssignment))
		return nil
	})
}

func runScheduleCancel(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		if err := svc.Schedules.CancelTrain(ctx, actor, id, schedFlags.reason); err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "cancelled schedule %d at %s", id, fmtTime(time.Now()))
		return nil
	})
}

func runScheduleRm(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		if err := svc.Schedules.DeleteSchedule(ctx, actor, id); err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "deleted schedule %d", id)
		return nil
	})
}
