// Package server discovers the host's reachable interface addresses for the
// serverInfo greeting pushed to every new connection.
package server

import (
	"log"
	"net"
	"sync"

	"github.com/campfire-chat/campfire/internal/protocol"
)

var (
	serverInfoOnce sync.Once
	serverInfo     protocol.ServerInfo
)

// serverAddresses returns the non-loopback interface addresses of the host,
// split by family. The scan runs once per process; interfaces added later
// are not picked up, matching the startup-time snapshot clients expect.
func serverAddresses() protocol.ServerInfo {
	serverInfoOnce.Do(func() {
		serverInfo = discoverAddresses()
	})
	return serverInfo
}

func discoverAddresses() protocol.ServerInfo {
	info := protocol.ServerInfo{IPv4: []string{}, IPv6: []string{}}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.Printf("Error listing interface addresses: %v", err)
		return info
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			info.IPv4 = append(info.IPv4, v4.String())
		} else {
			info.IPv6 = append(info.IPv6, ipNet.IP.String())
		}
	}

	return info
}
