package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ttms/config"
	"github.com/kilianp07/ttms/core/audit"
	"github.com/kilianp07/ttms/core/factory"
	coremetrics "github.com/kilianp07/ttms/core/metrics"
	"github.com/kilianp07/ttms/core/notify"
)

func TestRegisterBuiltins(t *testing.T) {
	require.NoError(t, Register(config.Default()))
	require.NoError(t, Register(config.Default()))

	_, err := audit.NewSinks([]factory.ModuleConfig{{Type: "log"}})
	assert.NoError(t, err)
	_, err = notify.NewEmitters([]factory.ModuleConfig{{Type: "log"}})
	assert.NoError(t, err)
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	assert.NoError(t, err)
	assert.NotNil(t, sink)
}
