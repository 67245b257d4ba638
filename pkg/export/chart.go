package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/ttms/core/schedule"
)

// WriteDelayChart renders an HTML bar chart of the live delay of each
// schedule, labelled by train number and departure.
func WriteDelayChart(w io.Writer, views []schedule.View) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Train delays", Subtitle: fmt.Sprintf("%d active schedules", len(views))}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Train"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Delay (min)"}),
	)

	labels := make([]string, 0, len(views))
	delays := make([]opts.BarData, 0, len(views))
	for _, v := range views {
		label := v.TrainNumber
		if label == "" {
			label = fmt.Sprintf("#%d", v.TrainID)
		}
		labels = append(labels, label+" "+v.DepartureTime.UTC().Format("15:04"))
		delays = append(delays, opts.BarData{Value: v.DelayMinutes})
	}
	bar.SetXAxis(labels).AddSeries("delay", delays)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render delay chart: %w", err)
	}
	return nil
}
