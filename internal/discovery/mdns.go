// Package discovery announces a hosted relay on the local network and browses
// for one to join, over mDNS.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/betamos/zeroconf"
)

const (
	ServiceType = "_orbit._tcp"
	Domain      = "local."
)

// Relay is a relay instance seen on the local network.
type Relay struct {
	Name string
	Addr string
	Port int
}

// Discovery is a running announce or browse session.
type Discovery struct {
	client *zeroconf.Client
}

// Announce publishes a relay instance so peers on the LAN can find it.
func Announce(name string, port int) (*Discovery, error) {
	svcType := zeroconf.NewType(ServiceType)
	port16 := uint16(port)
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	self := zeroconf.NewService(svcType, name, port16)

	client, err := zeroconf.New().Publish(self).Open()
	if err != nil {
		return nil, fmt.Errorf("zeroconf: %w", err)
	}
	return &Discovery{client: client}, nil
}

// Browse watches the local network for relays, invoking onRelay for each one
// that appears.
func Browse(onRelay func(Relay)) (*Discovery, error) {
	svcType := zeroconf.NewType(ServiceType)
	client, err := zeroconf.New().
		Browse(func(e zeroconf.Event) {
			handleEvent(e, onRelay)
		}, svcType).
		Open()
	if err != nil {
		return nil, fmt.Errorf("zeroconf: %w", err)
	}
	return &Discovery{client: client}, nil
}

func handleEvent(e zeroconf.Event, onRelay func(Relay)) {
	var addrs []string
	for _, a := range e.Addrs {
		if a.IsValid() {
			addrs = append(addrs, net.JoinHostPort(a.String(), strconv.Itoa(int(e.Port))))
		}
	}
	if len(addrs) == 0 {
		return
	}
	// Prefer an IPv4 address when one is present.
	addr := addrs[0]
	for _, a := range addrs {
		if strings.Count(a, ":") == 1 {
			addr = a
			break
		}
	}
	if onRelay != nil {
		onRelay(Relay{Name: e.Name, Addr: addr, Port: int(e.Port)})
	}
}

// Close stops announcing or browsing.
func (d *Discovery) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
