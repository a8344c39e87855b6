package discovery

import (
	"errors"
	"time"

	"github.com/rfbench/vp8122a-go/pkg/transport"
)

// Service type constants for mDNS.
const (
	// ServiceTypeSCPIRaw is the raw socket instrument service.
	ServiceTypeSCPIRaw = "_scpi-raw._tcp"

	// ServiceTypeLXI is the LXI device service.
	ServiceTypeLXI = "_lxi._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the conventional raw socket port.
	DefaultPort = 5025
)

// TXT record keys (LXI device specification).
const (
	TXTKeyManufacturer = "Manufacturer"
	TXTKeyModel        = "Model"
	TXTKeySerial       = "SerialNumber"
	TXTKeyFirmware     = "FirmwareVersion"
)

// Timing and size constants.
const (
	// BrowseTimeout is the default time spent collecting answers.
	BrowseTimeout = 2 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrInvalidPort         = errors.New("invalid port")
	ErrNotFound            = errors.New("instrument not found")
)

// Instrument is one discovered instrument service.
type Instrument struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised host name.
	Host string

	// Port is the raw socket port.
	Port uint16

	// Addresses are the IP addresses, IPv4 first.
	Addresses []string

	// Informational TXT fields (may be empty).
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// clone returns a copy that shares no memory with i.
func (i *Instrument) clone() *Instrument {
	c := *i
	c.Addresses = append([]string(nil), i.Addresses...)
	return &c
}

// ResourceIDs returns one socket resource id per address.
func (i *Instrument) ResourceIDs() []string {
	ids := make([]string, 0, len(i.Addresses))
	for _, addr := range i.Addresses {
		ids = append(ids, transport.SocketID(addr, int(i.Port)))
	}
	return ids
}

// InstrumentInfo describes an instrument to advertise.
type InstrumentInfo struct {
	InstanceName string
	Port         uint16
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}
