package socket

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// IPVersion is the address family of a Socket or Endpoint.
type IPVersion uint8

const (
	// IPv4 selects AF_INET.
	IPv4 IPVersion = iota + 1
	// IPv6 selects AF_INET6.
	IPv6
)

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	}
	return "unknown(" + strconv.Itoa(int(v)) + ")"
}

func (v IPVersion) valid() bool {
	return v == IPv4 || v == IPv6
}

func (v IPVersion) family() int {
	if v == IPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// Endpoint is an immutable IP address and port pair.
type Endpoint struct {
	version  IPVersion
	hostname string
	ip       net.IP
	port     uint16
}

// NewEndpoint builds an Endpoint from an IP address and a port.
// Addresses with an IPv4 form yield an IPv4 endpoint, everything else an IPv6
// one. net.IP cannot tell 1.2.3.4 from ::ffff:1.2.3.4, so use ResolveEndpoint
// with IPv6 notation to reach an IPv4 peer from an IPv6 socket.
func NewEndpoint(ip net.IP, port uint16) (Endpoint, error) {
	if ip4 := ip.To4(); ip4 != nil {
		return Endpoint{version: IPv4, hostname: ip4.String(), ip: ip4, port: port}, nil
	}
	if ip16 := ip.To16(); ip16 != nil {
		return Endpoint{version: IPv6, hostname: ip16.String(), ip: ip16, port: port}, nil
	}
	return Endpoint{}, errors.Errorf("endpoint: invalid ip %v", ip)
}

// ResolveEndpoint builds an Endpoint from a host name or IP literal.
// Literals written in IPv6 notation, including IPv4-mapped ones, stay IPv6.
// IPv4 addresses are preferred when the host resolves to both families.
func ResolveEndpoint(ctx context.Context, host string, port uint16) (Endpoint, error) {
	if ip := net.ParseIP(host); ip != nil {
		if strings.Contains(host, ":") {
			return Endpoint{version: IPv6, hostname: host, ip: ip.To16(), port: port}, nil
		}
		ep, err := NewEndpoint(ip, port)
		if err != nil {
			return Endpoint{}, err
		}
		ep.hostname = host
		return ep, nil
	}

	for _, network := range []string{"ip4", "ip6"} {
		ips, err := net.DefaultResolver.LookupIP(ctx, network, host)
		if err != nil || len(ips) == 0 {
			continue
		}
		ep, err := NewEndpoint(ips[0], port)
		if err != nil {
			return Endpoint{}, err
		}
		ep.hostname = host
		return ep, nil
	}

	return Endpoint{}, errors.Errorf("endpoint: cannot resolve host %q", host)
}

// IPVersion returns the address family of the endpoint.
func (e Endpoint) IPVersion() IPVersion {
	return e.version
}

// IP returns the endpoint address: 4 bytes for IPv4, 16 bytes for IPv6.
func (e Endpoint) IP() net.IP {
	return e.ip
}

// Port returns the endpoint port.
func (e Endpoint) Port() uint16 {
	return e.port
}

// Hostname returns the host the endpoint was built from.
func (e Endpoint) Hostname() string {
	return e.hostname
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.ip.String(), strconv.Itoa(int(e.port)))
}

// sockaddr converts the endpoint to its native representation.
func (e Endpoint) sockaddr() (unix.Sockaddr, error) {
	switch e.version {
	case IPv4:
		sa := &unix.SockaddrInet4{Port: int(e.port)}
		copy(sa.Addr[:], e.ip.To4())
		return sa, nil
	case IPv6:
		sa := &unix.SockaddrInet6{Port: int(e.port)}
		copy(sa.Addr[:], e.ip.To16())
		return sa, nil
	}
	return nil, ErrInvalidIPVersion
}

// endpointFromSockaddr converts a native address back to an Endpoint.
// IPv4-mapped IPv6 addresses keep the IPv6 version of the socket they came from.
func endpointFromSockaddr(sa unix.Sockaddr) (Endpoint, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return Endpoint{version: IPv4, hostname: ip.String(), ip: ip, port: uint16(sa.Port)}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return Endpoint{version: IPv6, hostname: ip.String(), ip: ip, port: uint16(sa.Port)}, nil
	}
	return Endpoint{}, errors.Errorf("endpoint: unsupported address %T", sa)
}
