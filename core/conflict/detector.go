// Package conflict detects track occupancy clashes between schedules.
//
// Two schedules on the same track and day conflict when their closed
// [departure, arrival] intervals intersect. Touching endpoints count.
package conflict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/ttms/core/logger"
	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/refdata"
)

// Overlaps reports whether [aDep, aArr] and [bDep, bArr] intersect.
func Overlaps(aDep, aArr, bDep, bArr time.Time) bool {
	return !aDep.After(bArr) && !aArr.Before(bDep)
}

// Window returns the intersection of two overlapping intervals.
func Window(aDep, aArr, bDep, bArr time.Time) (start, end time.Time) {
	start, end = aDep, aArr
	if bDep.After(start) {
		start = bDep
	}
	if bArr.Before(end) {
		end = bArr
	}
	return start, end
}

// Candidate is a schedule being admitted or modified.
type Candidate struct {
	ScheduleID      *int64
	TrackAssignment *string
	ScheduleDate    time.Time
	DepartureTime   time.Time
	ArrivalTime     time.Time
}

// CandidateOf builds a Candidate from a schedule. A zero ID yields a nil
// ScheduleID.
func CandidateOf(s model.TrainSchedule) Candidate {
	c := Candidate{
		TrackAssignment: s.TrackAssignment,
		ScheduleDate:    s.ScheduleDate,
		DepartureTime:   s.DepartureTime,
		ArrivalTime:     s.ArrivalTime,
	}
	if s.ID != 0 {
		id := s.ID
		c.ScheduleID = &id
	}
	return c
}

func (c Candidate) track() string {
	if c.TrackAssignment == nil {
		return ""
	}
	return strings.TrimSpace(*c.TrackAssignment)
}

// Tx is the slice of a store transaction the detector needs.
type Tx interface {
	refdata.Lookup
	ListTrackSchedules(ctx context.Context, track string, day time.Time, excludeID *int64) ([]model.TrainSchedule, error)
	InsertConflict(ctx context.Context, c *model.Conflict) (int64, error)
}

// Detector finds conflicts and records them through the caller's transaction.
type Detector struct {
	log logger.Logger
	now func() time.Time
}

// NewDetector returns a Detector.
func NewDetector(log logger.Logger) *Detector {
	return &Detector{log: log, now: time.Now}
}

// FindConflicts scans active schedules sharing the candidate's track and day,
// excluding excludeID, and returns one descriptor per overlap. Every hit is
// also persisted as a detected track_overlap conflict through tx. A candidate
// without a track has no conflicts.
func (d *Detector) FindConflicts(ctx context.Context, tx Tx, cand Candidate, excludeID *int64) ([]model.ConflictDescriptor, error) {
	track := cand.track()
	if track == "" {
		return nil, nil
	}
	day := cand.ScheduleDate
	if day.IsZero() {
		day = cand.DepartureTime
	}
	day = model.Day(day)

	existing, err := tx.ListTrackSchedules(ctx, track, day, excludeID)
	if err != nil {
		return nil, fmt.Errorf("scan track %s: %w", track, err)
	}

	var out []model.ConflictDescriptor
	for _, other := range existing {
		if !Overlaps(cand.DepartureTime, cand.ArrivalTime, other.DepartureTime, other.ArrivalTime) {
			continue
		}
		start, end := Window(cand.DepartureTime, cand.ArrivalTime, other.DepartureTime, other.ArrivalTime)
		number := refdata.TrainNumber(ctx, tx, other.TrainID)
		desc := model.ConflictDescriptor{
			ScheduleID1: cand.ScheduleID,
			ScheduleID2: other.ID,
			TrainID:     other.TrainID,
			TrainNumber: number,
			Resource:    track,
			WindowStart: start,
			WindowEnd:   end,
			Message:     fmt.Sprintf("Track conflict with train %s on track %s", number, track),
		}
		rec := &model.Conflict{
			Type:             model.ConflictTrackOverlap,
			Severity:         model.SeverityMedium,
			ScheduleID1:      cand.ScheduleID,
			ScheduleID2:      other.ID,
			TimeStart:        start,
			TimeEnd:          end,
			ResourceID:       track,
			Description:      desc.Message,
			DetectedBySystem: true,
			Status:           model.ConflictDetected,
			CreatedAt:        d.now().UTC(),
		}
		if _, err := tx.InsertConflict(ctx, rec); err != nil {
			return nil, fmt.Errorf("record conflict: %w", err)
		}
		out = append(out, desc)
	}
	if len(out) > 0 && d.log != nil {
		d.log.Debugw("track conflicts detected", map[string]any{
			"track":     track,
			"date":      day.Format("2006-01-02"),
			"conflicts": len(out),
		})
	}
	return out, nil
}
