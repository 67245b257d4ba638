package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ttms/app"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/position"
)

var posFlags struct {
	report position.Report
	status string
	eta    string
}

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Live position commands",
}

var positionReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Record the live position of a train",
	RunE:  runPositionReport,
}

var positionSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarise the delays of tracked trains",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			s, err := svc.Tracker.DelaySummary(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "trains tracked:  %d\n", s.Trains)
			fmt.Fprintf(out, "on time:         %d (%.1f%%)\n", s.OnTime, s.OnTimePercent)
			fmt.Fprintf(out, "delayed:         %d\n", s.Delayed)
			fmt.Fprintf(out, "above threshold: %d\n", s.Alerting)
			fmt.Fprintf(out, "delay mean/std:  %.1f / %.1f min, max %d min\n", s.MeanDelay, s.StdDevDelay, s.MaxDelay)
			return nil
		})
	},
}

func init() {
	r := &posFlags.report
	f := positionReportCmd.Flags()
	f.Int64Var(&r.TrainID, "train", 0, "train id")
	f.Int64Var(&r.ScheduleID, "schedule", 0, "schedule id")
	f.Float64Var(&r.Latitude, "lat", 0, "latitude")
	f.Float64Var(&r.Longitude, "lon", 0, "longitude")
	f.Float64Var(&r.SpeedKmh, "speed", 0, "speed in km/h")
	f.Float64Var(&r.HeadingDegrees, "heading", 0, "heading in degrees")
	f.IntVar(&r.DelayMinutes, "delay", 0, "delay in minutes")
	f.Float64Var(&r.DistanceToNextStation, "distance", 0, "distance to the next station in km")
	f.Float64Var(&r.FuelLevelPercent, "fuel", 0, "fuel level percent")
	f.StringVar(&posFlags.status, "status", string(model.StatusOnTime), "on_time, delayed, early, stopped or cancelled")
	f.StringVar(&posFlags.eta, "eta", "", "estimated arrival, UTC")
	_ = positionReportCmd.MarkFlagRequired("train")
	_ = positionReportCmd.MarkFlagRequired("schedule")

	positionCmd.AddCommand(positionReportCmd, positionSummaryCmd)
	rootCmd.AddCommand(positionCmd)
}

func runPositionReport(cmd *cobra.Command, args []string) error {
	actor, err := currentActor()
	if err != nil {
		return err
	}
	r := posFlags.report
	r.Status = model.PositionStatus(posFlags.status)
	if posFlags.eta != "" {
		eta, err := parseTime("eta", posFlags.eta)
		if err != nil {
			return err
		}
		r.EstimatedArrival = &eta
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		p, err := svc.Tracker.ReportPosition(ctx, actor, r)
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "train %d on schedule %d: %s, %d min late",
			p.TrainID, p.ScheduleID, p.Status, p.DelayMinutes)
		if p.DelayMinutes > svc.Tracker.Threshold() {
			fmt.Fprintln(cmd.OutOrStdout(), statusColor(string(model.StatusDelayed))+" alert raised")
		}
		return nil
	})
}
