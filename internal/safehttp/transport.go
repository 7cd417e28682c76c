// Package safehttp builds HTTP clients that refuse to dial private networks.
package safehttp

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

const dialTimeout = 5 * time.Second

// NewClient returns a client whose connections to loopback, private or
// link-local addresses fail before the TCP handshake.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(),
	}
}

// NewTransport clones the default transport with a guarded dialer.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = (&net.Dialer{
		Timeout: dialTimeout,
		Control: control,
	}).DialContext
	return t
}

// control runs after name resolution with the concrete address being dialed.
func control(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("failed to parse remote IP for %q", address)
	}
	if !Allowed(addr) {
		return fmt.Errorf("access to private IP %s is denied", addr)
	}
	return nil
}

// Allowed reports whether addr is a public unicast address.
func Allowed(addr netip.Addr) bool {
	addr = addr.Unmap()
	return !(addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified())
}
