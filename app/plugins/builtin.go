// Package plugins registers the builtin audit sinks and notification
// emitters. Metrics sinks register themselves when infra/metrics is linked.
package plugins

import (
	"github.com/kilianp07/ttms/config"
	infaudit "github.com/kilianp07/ttms/infra/audit"
	_ "github.com/kilianp07/ttms/infra/metrics"
	infnotify "github.com/kilianp07/ttms/infra/notify"
)

// Register makes every builtin sink selectable from cfg. The mqtt emitter
// falls back to the shared broker connection settings.
func Register(cfg *config.Config) error {
	if err := infaudit.Register(); err != nil {
		return err
	}
	return infnotify.Register(cfg.MQTT)
}
