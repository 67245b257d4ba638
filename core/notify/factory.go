package notify

import "github.com/kilianp07/ttms/core/factory"

var emitterRegistry = factory.NewRegistry[Emitter]()

// RegisterEmitter adds a notification emitter factory identified by name.
func RegisterEmitter(name string, f factory.Factory[Emitter]) error {
	return emitterRegistry.Register(name, f)
}

// NewEmitters instantiates every configured emitter.
func NewEmitters(cfgs []factory.ModuleConfig) ([]Emitter, error) {
	out := make([]Emitter, 0, len(cfgs))
	for _, c := range cfgs {
		e, err := emitterRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
