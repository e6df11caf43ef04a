package preview

import (
	"fmt"
	"net"
	"strconv"
)

// URLs lists the addresses the bound server answers on, split the way dev
// tooling prints them. Display-only; routing never consults these.
type URLs struct {
	Local   []string
	Network []string
}

// resolveURLs derives the printable endpoints from the configured host, the
// actually bound port, and the negotiated protocol. An unspecified host
// (0.0.0.0 or ::) exposes every non-loopback interface address under
// Network plus a localhost convenience entry under Local.
func resolveURLs(host string, port int, https bool) URLs {
	scheme := "http"
	if https {
		scheme = "https"
	}

	var urls URLs
	switch {
	case isUnspecifiedHost(host):
		urls.Local = append(urls.Local, formatURL(scheme, "localhost", port))
		for _, ip := range interfaceIPs() {
			urls.Network = append(urls.Network, formatURL(scheme, ip, port))
		}
	case isLoopbackHost(host):
		urls.Local = append(urls.Local, formatURL(scheme, host, port))
	default:
		urls.Network = append(urls.Network, formatURL(scheme, host, port))
	}
	return urls
}

func formatURL(scheme, host string, port int) string {
	return fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

func isUnspecifiedHost(host string) bool {
	if host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// interfaceIPs returns the host's non-loopback IPv4 addresses.
func interfaceIPs() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var ips []string
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
			continue
		}
		ips = append(ips, ipnet.IP.String())
	}
	return ips
}
