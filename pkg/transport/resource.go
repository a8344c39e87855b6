package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Interface is the bus interface of a resource id.
type Interface string

// Supported bus interfaces.
const (
	InterfaceTCPIP Interface = "TCPIP"
	InterfaceGPIB  Interface = "GPIB"
)

// ResourceID is a parsed VISA-style resource id.
type ResourceID struct {
	Interface Interface
	Board     int

	// TCPIP SOCKET resources.
	Host string
	Port int

	// GPIB primary address (0-30).
	Address int
}

// ParseResourceID parses "TCPIP[n]::host::port::SOCKET" and
// "GPIB[n]::addr[::INSTR]". Interface and class keywords are
// case-insensitive. IPv6 hosts may be bracketed.
func ParseResourceID(s string) (ResourceID, error) {
	parts := strings.Split(strings.TrimSpace(s), "::")
	if len(parts) < 2 {
		return ResourceID{}, fmt.Errorf("%w: %q", ErrInvalidResourceID, s)
	}

	kind, board, err := splitBoard(parts[0])
	if err != nil {
		return ResourceID{}, fmt.Errorf("%w: %q: %v", ErrInvalidResourceID, s, err)
	}

	switch kind {
	case InterfaceTCPIP:
		// The host may itself contain "::" (IPv6), so anchor on the ends.
		if len(parts) < 4 || !strings.EqualFold(parts[len(parts)-1], "SOCKET") {
			return ResourceID{}, fmt.Errorf("%w: %q: want TCPIP::host::port::SOCKET", ErrInvalidResourceID, s)
		}
		host := strings.Join(parts[1:len(parts)-2], "::")
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		port, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil || port <= 0 || port > 65535 || host == "" {
			return ResourceID{}, fmt.Errorf("%w: %q: bad host or port", ErrInvalidResourceID, s)
		}
		return ResourceID{Interface: kind, Board: board, Host: host, Port: port}, nil

	case InterfaceGPIB:
		if len(parts) > 3 || (len(parts) == 3 && !strings.EqualFold(parts[2], "INSTR")) {
			return ResourceID{}, fmt.Errorf("%w: %q: want GPIB::addr::INSTR", ErrInvalidResourceID, s)
		}
		addr, err := strconv.Atoi(parts[1])
		if err != nil || addr < 0 || addr > 30 {
			return ResourceID{}, fmt.Errorf("%w: %q: GPIB address must be 0-30", ErrInvalidResourceID, s)
		}
		return ResourceID{Interface: kind, Board: board, Address: addr}, nil
	}

	return ResourceID{}, fmt.Errorf("%w: %s", ErrUnsupportedInterface, kind)
}

func splitBoard(tok string) (Interface, int, error) {
	tok = strings.ToUpper(strings.TrimSpace(tok))
	i := len(tok)
	for i > 0 && tok[i-1] >= '0' && tok[i-1] <= '9' {
		i--
	}
	if i == 0 {
		return "", 0, fmt.Errorf("missing interface")
	}
	board := 0
	if i < len(tok) {
		n, err := strconv.Atoi(tok[i:])
		if err != nil {
			return "", 0, err
		}
		board = n
	}
	return Interface(tok[:i]), board, nil
}

// String returns the canonical form of the id.
func (r ResourceID) String() string {
	switch r.Interface {
	case InterfaceTCPIP:
		host := r.Host
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", r.Board, host, r.Port)
	case InterfaceGPIB:
		return fmt.Sprintf("GPIB%d::%d::INSTR", r.Board, r.Address)
	}
	return string(r.Interface)
}

// HostPort returns the dial address of a TCPIP resource.
func (r ResourceID) HostPort() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// SocketID returns the resource id of a raw socket at host:port.
func SocketID(host string, port int) string {
	return ResourceID{Interface: InterfaceTCPIP, Host: host, Port: port}.String()
}
