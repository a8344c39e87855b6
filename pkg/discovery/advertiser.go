package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// ServiceType to register (default: _scpi-raw._tcp).
	ServiceType string

	// Interface specifies which network interface to advertise on.
	// Empty string means all interfaces.
	Interface string
}

// Advertiser publishes one instrument service over mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates a new advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.ServiceType == "" {
		config.ServiceType = ServiceTypeSCPIRaw
	}
	return &Advertiser{config: config}
}

// Advertise starts advertising info, replacing any previous registration.
func (a *Advertiser) Advertise(info *InstrumentInfo) error {
	if err := ValidateInstanceName(info.InstanceName); err != nil {
		return err
	}
	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(
		info.InstanceName,
		a.config.ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeInstrumentTXT(info)),
		a.interfaces(),
	)
	if err != nil {
		return fmt.Errorf("failed to register instrument service: %w", err)
	}
	a.server = server
	return nil
}

// Stop stops advertising. It is safe to call when not advertising.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns nil to use all interfaces.
func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
