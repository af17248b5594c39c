// Package systemd reports service state to the init system. All calls are
// no-ops when the process does not run under a Type=notify unit.
package systemd

import (
	sd "github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady marks the unit as started.
func NotifyReady() (bool, error) {
	return sd.SdNotify(false, sd.SdNotifyReady)
}

// NotifyStopping tells systemd a shutdown is in progress so it extends the
// stop timeout accordingly.
func NotifyStopping() (bool, error) {
	return sd.SdNotify(false, sd.SdNotifyStopping)
}

// NotifyStatus publishes a one-line status visible in systemctl output.
func NotifyStatus(status string) (bool, error) {
	return sd.SdNotify(false, "STATUS="+status)
}
