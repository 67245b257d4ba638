package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/ttms/core/model"
	"github.com/kilianp07/ttms/core/schedule"
)

func sampleViews() []schedule.View {
	track := "A"
	dep := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	return []schedule.View{{
		TrainSchedule: model.TrainSchedule{
			ID:              7,
			TimetableID:     1,
			ScheduleDate:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			DepartureTime:   dep,
			ArrivalTime:     dep.Add(2 * time.Hour),
			OperatingDays:   model.EveryDay,
			TrackAssignment: &track,
			PriorityLevel:   1,
		},
		State:        model.ScheduleActive,
		TrainNumber:  "IC101",
		RouteCode:    "N-S",
		DelayMinutes: 12,
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleViews()); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one row, got %d", len(rows))
	}
	want := []string{"7", "1", "IC101", "N-S", "2025-02-01", "2025-02-01T08:00:00Z", "2025-02-01T10:00:00Z",
		"A", "", "1111111", "1", "active", "12"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("column %s: got %q want %q", Header[i], rows[1][i], v)
		}
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out []any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil || out == nil || len(out) != 0 {
		t.Fatalf("expected empty array, got %q", buf.String())
	}
}

func TestWriteDelayChart(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDelayChart(&buf, sampleViews()); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<html", "Train delays", "IC101 08:00"} {
		if !strings.Contains(html, want) {
			t.Errorf("chart is missing %q", want)
		}
	}
}
