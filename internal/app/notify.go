package app

import (
	logx "briefbot/pkg/logx"
	"briefbot/pkg/systemd"
)

func notifyReady(log logx.Logger) {
	if ok, err := systemd.NotifyReady(); err != nil {
		log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		log.Debug("systemd notified ready")
	}
	_, _ = systemd.NotifyStatus("watching schedule")
}

func notifyStopping(log logx.Logger) {
	if _, err := systemd.NotifyStopping(); err != nil {
		log.Warn("systemd notify failed", logx.Err(err))
	}
}
