// Package monitoring reports unexpected failures (store errors, panics in
// background handlers) to an error tracker. Domain errors such as validation
// or conflicts are expected outcomes and are never reported.
//
// The tracker is process wide: app.New installs it with Init and packages
// report through CaptureException.
package monitoring

import (
	"strconv"
	"sync"
	"time"
)

// Tags annotate a captured error. Keys are lower snake case.
type Tags map[string]string

// Op tags a failed service operation, e.g. "add schedule".
func Op(op string) Tags { return Tags{"op": op} }

// Component tags a failure raised by an adapter, e.g. "telemetry".
func Component(name string) Tags { return Tags{"module": name} }

// With returns a copy of t with key set to value.
func (t Tags) With(key, value string) Tags {
	out := make(Tags, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	out[key] = value
	return out
}

// Train adds the train id.
func (t Tags) Train(id int64) Tags { return t.With("train_id", strconv.FormatInt(id, 10)) }

// Schedule adds the schedule id.
func (t Tags) Schedule(id int64) Tags { return t.With("schedule_id", strconv.FormatInt(id, 10)) }

// Monitor forwards errors to an error tracker.
type Monitor interface {
	CaptureException(err error, tags Tags)
	Flush(timeout time.Duration)
}

// NopMonitor drops everything. It is installed until Init is called and
// whenever no tracker is configured.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, Tags) {}
func (NopMonitor) Flush(time.Duration)          {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the process monitor. A nil m restores NopMonitor.
func Init(m Monitor) {
	if m == nil {
		m = NopMonitor{}
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func monitor() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException reports err with tags. Nil errors are ignored.
func CaptureException(err error, tags Tags) {
	if err == nil {
		return
	}
	monitor().CaptureException(err, tags)
}

// Flush waits up to d for buffered reports to be sent.
func Flush(d time.Duration) { monitor().Flush(d) }
