package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/factory"
)

func TestFileSinkAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	s, err := NewFileSink(FileConfig{Path: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Record(ctx, audit.Record{ID: "a", ActorID: "u1", Action: audit.ActionCreateSchedule, EntityTable: "train_schedules", EntityID: 1}))
	require.NoError(t, s.Record(ctx, audit.Record{ID: "b", ActorID: "u1", Action: audit.ActionCancelTrain, EntityTable: "train_schedules", EntityID: 1}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var got []audit.Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec audit.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		got = append(got, rec)
	}
	require.Len(t, got, 2)
	assert.Equal(t, audit.ActionCancelTrain, got[1].Action)
}

func TestFileSinkFromRegistry(t *testing.T) {
	require.NoError(t, Register())
	_, err := audit.NewSinks([]factory.ModuleConfig{{Type: "file"}})
	assert.Error(t, err)

	sinks, err := audit.NewSinks([]factory.ModuleConfig{{Type: "file", Conf: map[string]any{
		"path": filepath.Join(t.TempDir(), "audit.jsonl"), "max_size_mb": "5",
	}}})
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.IsType(t, &FileSink{}, sinks[0])
}
