package tasks

import (
	"net"
	"strings"

	"github.com/lysyi3m/rss-hoard/app/config"
)

// Reachability reports the current network situation.
type Reachability interface {
	HasConnectivity() bool
	IsOnWiFi() bool
}

type PreferencesSource interface {
	Get() config.Preferences
}

// Gate decides whether a triggered refresh may run.
type Gate struct {
	prefs PreferencesSource
	reach Reachability
}

func NewGate(prefs PreferencesSource, reach Reachability) *Gate {
	return &Gate{prefs: prefs, reach: reach}
}

// Allow returns false and a reason when the refresh should be skipped.
func (g *Gate) Allow() (bool, string) {
	p := g.prefs.Get()
	if p.Refresh.Manual() {
		return false, "manual refresh only"
	}
	if g.reach == nil {
		return true, ""
	}
	if !g.reach.HasConnectivity() {
		return false, "no network connectivity"
	}
	if p.Refresh.WiFiOnly && !g.reach.IsOnWiFi() {
		return false, "not on Wi-Fi"
	}
	return true, ""
}

// wirelessPrefixes match Linux wireless interface names.
var wirelessPrefixes = []string{"wl", "wifi"}

// InterfaceMonitor derives reachability from the host's network interfaces.
type InterfaceMonitor struct {
	interfaces func() ([]net.Interface, error)
}

func NewInterfaceMonitor() *InterfaceMonitor {
	return &InterfaceMonitor{interfaces: net.Interfaces}
}

func (m *InterfaceMonitor) active() []net.Interface {
	all, err := m.interfaces()
	if err != nil {
		return nil
	}
	var up []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		up = append(up, iface)
	}
	return up
}

func (m *InterfaceMonitor) HasConnectivity() bool {
	return len(m.active()) > 0
}

func (m *InterfaceMonitor) IsOnWiFi() bool {
	for _, iface := range m.active() {
		name := strings.ToLower(iface.Name)
		for _, prefix := range wirelessPrefixes {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		}
	}
	return false
}
