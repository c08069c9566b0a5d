// internal/alarm/alarm.go

// Package alarm alerts the operator when automation needs a human.
package alarm

import (
	"strings"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

const (
	defaultTitle   = "loopguard"
	maxMessageLen  = 800
	interventionTx = "Intervention needed"
	endedTx        = "Profile ended"
)

// Desktop raises desktop notifications and an audible beep through beeep.
// Delivery failures are logged and otherwise ignored.
type Desktop struct {
	cfg    config.AlarmConfig
	logger *zap.Logger

	notify func(title, message, icon string) error
	beep   func(freq float64, duration int) error
}

var _ schemas.Alarm = (*Desktop)(nil)

// NewDesktop creates a desktop alarm.
func NewDesktop(cfg config.AlarmConfig, logger *zap.Logger) *Desktop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = defaultTitle
	}
	return &Desktop{
		cfg:    cfg,
		logger: logger.Named("alarm"),
		notify: func(title, message, icon string) error { return beeep.Notify(title, message, icon) },
		beep:   beeep.Beep,
	}
}

// InterventionNeeded beeps and shows a notification.
func (d *Desktop) InterventionNeeded(reason string) {
	d.logger.Warn("Operator intervention needed.", zap.String("reason", reason))
	if d.cfg.Beep {
		if err := d.beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			d.logger.Debug("Beep failed.", zap.Error(err))
		}
	}
	d.show(interventionTx, reason)
}

// ProfileEnded shows a notification without sound.
func (d *Desktop) ProfileEnded(reason string) {
	d.logger.Info("Profile ended.", zap.String("reason", reason))
	d.show(endedTx, reason)
}

func (d *Desktop) show(headline, reason string) {
	if !d.cfg.Notify {
		return
	}
	msg := headline
	if reason = strings.TrimSpace(reason); reason != "" {
		msg += ": " + reason
	}
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	if err := d.notify(d.cfg.Title, msg, ""); err != nil {
		d.logger.Debug("Desktop notification failed.", zap.Error(err))
	}
}

// Nop discards alarms.
type Nop struct{}

func (Nop) InterventionNeeded(string) {}
func (Nop) ProfileEnded(string)       {}

// New returns a Desktop alarm when alarms are enabled, Nop otherwise.
func New(cfg config.AlarmConfig, logger *zap.Logger) schemas.Alarm {
	if !cfg.Enabled {
		return Nop{}
	}
	return NewDesktop(cfg, logger)
}
