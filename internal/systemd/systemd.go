// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package systemd lets services report their state to systemd using the
// sd_notify protocol.
//
// See https://www.freedesktop.org/software/systemd/man/sd_notify.html.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/learning/dailypush/internal/logger"
)

// State is a single sd_notify assignment.
type State string

const (
	// Ready tells the service manager that startup is finished.
	Ready State = "READY=1"
	// Stopping tells the service manager that the service is shutting down.
	Stopping State = "STOPPING=1"
	// Watchdog updates the watchdog timestamp.
	Watchdog State = "WATCHDOG=1"
)

// Status returns a free-form status line shown by systemctl status.
func Status(format string, args ...any) State {
	return State("STATUS=" + fmt.Sprintf(format, args...))
}

// Notifier sends states to the service manager. The zero Notifier, or one
// without a socket, does nothing.
type Notifier struct {
	// Socket is the value of NOTIFY_SOCKET.
	Socket string
	// WatchdogUSec is the value of WATCHDOG_USEC.
	WatchdogUSec string
	// Logf receives delivery errors. If nil, they are dropped.
	Logf logger.Logf
}

// FromEnv returns a Notifier configured from the environment variables set
// by systemd.
func FromEnv(getenv func(string) string, logf logger.Logf) *Notifier {
	return &Notifier{
		Socket:       getenv("NOTIFY_SOCKET"),
		WatchdogUSec: getenv("WATCHDOG_USEC"),
		Logf:         logf,
	}
}

// Enabled reports whether the process runs under systemd with notifications
// turned on.
func (n *Notifier) Enabled() bool { return n != nil && n.Socket != "" }

// Notify sends states in a single datagram.
func (n *Notifier) Notify(states ...State) {
	if !n.Enabled() || len(states) == 0 {
		return
	}
	lines := make([]string, len(states))
	for i, s := range states {
		lines[i] = string(s)
	}
	if err := n.send(strings.Join(lines, "\n")); err != nil {
		n.logf("systemd: failed when notifying: %v", err)
	}
}

func (n *Notifier) send(msg string) error {
	addr := &net.UnixAddr{Net: "unixgram", Name: n.Socket}
	// Abstract namespace sockets are passed with a leading @.
	if strings.HasPrefix(addr.Name, "@") {
		addr.Name = "\x00" + addr.Name[1:]
	}
	conn, err := net.DialUnix(addr.Net, nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write([]byte(msg))
	return err
}

// WatchdogLoop pings the watchdog at half of the configured interval until
// ctx is canceled. It returns immediately if the watchdog is not enabled.
func (n *Notifier) WatchdogLoop(ctx context.Context) {
	if !n.Enabled() || n.WatchdogUSec == "" {
		return
	}

	interval, err := watchdogInterval(n.WatchdogUSec)
	if err != nil {
		n.logf("%v", err)
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.Notify(Watchdog)
		case <-ctx.Done():
			return
		}
	}
}

func (n *Notifier) logf(format string, args ...any) {
	if n.Logf != nil {
		n.Logf(format, args...)
	}
}

func watchdogInterval(usec string) (time.Duration, error) {
	s, err := strconv.Atoi(usec)
	if err != nil {
		return 0, fmt.Errorf("systemd: error converting WATCHDOG_USEC: %v", err)
	}
	if s <= 0 {
		return 0, errors.New("systemd: WATCHDOG_USEC must be a positive number")
	}
	return time.Duration(s) * time.Microsecond, nil
}
