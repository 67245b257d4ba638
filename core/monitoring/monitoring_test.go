package monitoring

import (
	"errors"
	"testing"
	"time"
)

type captured struct {
	errs []error
	tags []Tags
}

func (c *captured) CaptureException(err error, tags Tags) {
	c.errs = append(c.errs, err)
	c.tags = append(c.tags, tags)
}
func (c *captured) Flush(time.Duration) {}

func TestTagsBuilders(t *testing.T) {
	base := Op("report position")
	tags := base.Train(100).Schedule(7)
	if tags["op"] != "report position" || tags["train_id"] != "100" || tags["schedule_id"] != "7" {
		t.Fatalf("unexpected tags %v", tags)
	}
	if len(base) != 1 {
		t.Fatalf("With must not modify the receiver, got %v", base)
	}
	if Component("telemetry").With("topic", "ttms/trains/1/position")["module"] != "telemetry" {
		t.Fatalf("component tag missing")
	}
}

func TestCaptureUsesInstalledMonitor(t *testing.T) {
	c := &captured{}
	Init(c)
	defer Init(nil)

	CaptureException(nil, Op("noop"))
	CaptureException(errors.New("disk full"), Op("add schedule"))
	if len(c.errs) != 1 || c.tags[0]["op"] != "add schedule" {
		t.Fatalf("unexpected captures %v %v", c.errs, c.tags)
	}

	Init(nil)
	if _, ok := monitor().(NopMonitor); !ok {
		t.Fatalf("Init(nil) must restore the nop monitor")
	}
}
