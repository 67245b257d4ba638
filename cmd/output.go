package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/kilianp07/ttms/core/model"
)

const timeLayout = "2006-01-02 15:04"

func newTable(w io.Writer, header string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	return tw
}

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.GreenString(format, args...))
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, color.RedString("error: %v", err))
	for _, c := range model.ConflictsOf(err) {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("conflict:"), c.Message)
	}
}

// statusColor highlights a schedule state or position status.
func statusColor(s string) string {
	switch s {
	case string(model.StatusOnTime), string(model.StatusEarly), string(model.ScheduleActive):
		return color.GreenString(s)
	case string(model.StatusDelayed), string(model.StatusStopped):
		return color.YellowString(s)
	case string(model.StatusCancelled):
		return color.RedString(s)
	default:
		return s
	}
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func parseTime(flag, v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, timeLayout, "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("--%s: cannot parse %q as a UTC time", flag, v)
}
