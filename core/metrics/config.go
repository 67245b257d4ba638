package metrics

import "github.com/kilianp07/ttms/core/factory"

// Config lists the metrics sinks to create.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" mapstructure:"sinks"`
}
