// Package advertise announces the server on the local network over mDNS,
// so native clients can find it without typing an address.
package advertise

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/moyoez/snapshare/tool"
)

const (
	ServiceType   = "_snapshare._tcp"
	ServiceDomain = "local."
	// txtVersion is bumped when the TXT record layout changes.
	txtVersion = 1
)

// InstanceName is "SnapShare on <host>".
func InstanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	host = strings.TrimSuffix(host, ".local")
	return "SnapShare on " + host
}

// TXTRecords builds the TXT entries advertised next to the service.
func TXTRecords(url string) []string {
	return []string{
		fmt.Sprintf("ver=%d", txtVersion),
		"url=" + url,
		"events=/api/events",
	}
}

// Run registers the service and keeps it announced until ctx is done.
func Run(ctx context.Context, port int, url string) error {
	server, err := zeroconf.Register(InstanceName(), ServiceType, ServiceDomain, port, TXTRecords(url), nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	tool.DefaultLogger.Infof("[mDNS] Advertising %s on port %d", ServiceType, port)
	<-ctx.Done()
	server.Shutdown()
	tool.DefaultLogger.Debug("[mDNS] Advertisement withdrawn")
	return nil
}
