// Package factory provides a small generic registry used to instantiate
// pluggable sinks from configuration. A sink is selected by a type string and
// a map of raw settings which the factory decodes into a typed struct.
//
// Example usage:
//
//	reg := factory.NewRegistry[audit.Sink]()
//	reg.Register("kafka", func(conf map[string]any) (audit.Sink, error) {
//	    var c kafka.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewKafkaSink(c)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "kafka", Conf: map[string]any{"topic": "ttms.audit"}})
package factory
