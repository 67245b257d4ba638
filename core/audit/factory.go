package audit

import "github.com/kilianp07/ttms/core/factory"

var sinkRegistry = factory.NewRegistry[Sink]()

// RegisterSink adds an audit sink factory identified by name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSinks instantiates every configured sink.
func NewSinks(cfgs []factory.ModuleConfig) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
