package position

import (
	"context"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/store"
)

// Summary aggregates the delays of the tracked trains.
type Summary struct {
	Trains        int     `json:"trains"`
	OnTime        int     `json:"on_time"`
	Delayed       int     `json:"delayed"`
	Alerting      int     `json:"alerting"`
	OnTimePercent float64 `json:"on_time_percent"`
	MeanDelay     float64 `json:"mean_delay_minutes"`
	StdDevDelay   float64 `json:"stddev_delay_minutes"`
	MaxDelay      int     `json:"max_delay_minutes"`
}

// Summarize computes a Summary over positions. Cancelled runs are ignored.
// A train counts as on time when its status is on_time or early.
func Summarize(positions []model.TrainPosition, threshold int) Summary {
	delays := make([]float64, 0, len(positions))
	var s Summary
	for _, p := range positions {
		if p.Status == model.StatusCancelled {
			continue
		}
		delays = append(delays, float64(p.DelayMinutes))
		switch p.Status {
		case model.StatusOnTime, model.StatusEarly:
			s.OnTime++
		case model.StatusDelayed:
			s.Delayed++
		}
		if p.DelayMinutes > threshold {
			s.Alerting++
		}
	}
	s.Trains = len(delays)
	if s.Trains == 0 {
		return s
	}
	s.OnTimePercent = 100 * float64(s.OnTime) / float64(s.Trains)
	if s.Trains == 1 {
		s.MeanDelay = delays[0]
	} else {
		s.MeanDelay, s.StdDevDelay = stat.MeanStdDev(delays, nil)
	}
	s.MaxDelay = int(floats.Max(delays))
	return s
}

// DelaySummary summarises every stored position.
func (t *Tracker) DelaySummary(ctx context.Context) (Summary, error) {
	ps, err := t.List(ctx, store.PositionFilter{})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(ps, t.cfg.DelayThresholdMinutes), nil
}
