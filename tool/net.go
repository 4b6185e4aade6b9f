package tool

import (
	"fmt"
	"net"
	"sort"
)

// RejectUnsupportNetworkInterface filters interfaces that cannot reach LAN peers.
func RejectUnsupportNetworkInterface(iface *net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 {
		return true
	}
	if iface.Flags&net.FlagLoopback != 0 {
		return true
	}
	if iface.Flags&net.FlagPointToPoint != 0 {
		return true // utun / tun / vpn
	}
	return false
}

func GetLocalIPv4Set() map[string]struct{} {
	result := make(map[string]struct{})

	interfaces, err := net.Interfaces()
	if err != nil {
		return result
	}
	for _, iface := range interfaces {
		if RejectUnsupportNetworkInterface(&iface) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ipv4 := ipnet.IP.To4()
			if ipv4 == nil || ipv4.IsLoopback() || ipv4.IsLinkLocalUnicast() {
				continue
			}
			result[ipv4.String()] = struct{}{}
		}
	}
	return result
}

// PreferredLocalIP picks the address other devices should use to reach us.
// Private ranges win over public ones; loopback is the last resort.
func PreferredLocalIP() string {
	set := GetLocalIPv4Set()
	if len(set) == 0 {
		return "127.0.0.1"
	}
	ips := make([]string, 0, len(set))
	for ip := range set {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	for _, ip := range ips {
		if net.ParseIP(ip).IsPrivate() {
			return ip
		}
	}
	return ips[0]
}

// LANURL is the address other devices on the network open in a browser.
func LANURL(port int) string {
	return fmt.Sprintf("http://%s:%d", PreferredLocalIP(), port)
}
