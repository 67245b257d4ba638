package refdata

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/core/refdata"
)

const corridor = `
train_types:
  - {id: 1, code: IC, name: InterCity, color: "#0055aa"}
stations:
  - {id: 10, code: NTH, name: North, latitude: 48.85, longitude: 2.35}
  - {id: 11, code: STH, name: South, latitude: 45.76, longitude: 4.83}
trains:
  - {id: 100, number: IC101, name: Capitole, type_id: 1}
routes:
  - {id: 1, code: N-S, name: North-South, origin_station_id: 10, destination_station_id: 11}
`

type memWriter struct{ got refdata.Dataset }

func (m *memWriter) SeedReferenceData(_ context.Context, ds refdata.Dataset) error {
	m.got = ds
	return nil
}

func TestDecode(t *testing.T) {
	ds, err := Decode(strings.NewReader(corridor))
	require.NoError(t, err)
	require.Len(t, ds.Trains, 1)
	assert.Equal(t, "IC101", ds.Trains[0].Number)
	assert.Equal(t, "#0055aa", ds.TrainTypes[0].ColorCode)
	assert.Equal(t, int64(11), ds.Routes[0].DestinationStationID)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := Decode(strings.NewReader("trains:\n  - {id: 1, number: X, colour: red}\n"))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("routes:\n  - {id: 1, code: R, origin_station_id: 1, destination_station_id: 2}\n"))
	assert.ErrorIs(t, err, refdata.ErrUnknown)

	ds, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ds.Trains)
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refdata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(corridor), 0o600))

	w := &memWriter{}
	ds, err := Seed(context.Background(), w, path)
	require.NoError(t, err)
	assert.Equal(t, ds, w.got)

	_, err = Seed(context.Background(), w, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
