package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortTrackKeys(t *testing.T) {
	d1 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	keys := SortTrackKeys([]TrackKey{
		{Track: "T2", Date: d1},
		{Track: "T1", Date: d2},
		{Track: "T1", Date: d1},
		{Track: "", Date: d1},
		{Track: "T1", Date: d1.Add(2 * time.Hour)},
	})
	assert.Equal(t, []TrackKey{
		{Track: "T1", Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Track: "T2", Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Track: "T1", Date: d2},
	}, keys)
}
