package discovery

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// ServiceType to browse (default: _scpi-raw._tcp).
	ServiceType string

	// BrowseTimeout bounds ListResources (default: 2s).
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Logger for browse failures (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		ServiceType:   ServiceTypeSCPIRaw,
		BrowseTimeout: BrowseTimeout,
	}
}

// Browser discovers instruments over mDNS.
type Browser struct {
	config BrowserConfig
	browse browseFunc
}

// browseFunc matches zeroconf.Browse.
type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// NewBrowser creates a browser. Zero config fields take their defaults.
func NewBrowser(config BrowserConfig) *Browser {
	def := DefaultBrowserConfig()
	if config.ServiceType == "" {
		config.ServiceType = def.ServiceType
	}
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = def.BrowseTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Browser{
		config: config,
		browse: func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
			return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
		},
	}
}

// Browse streams instruments until ctx is done. Services are aggregated by
// instance name and each instance is emitted once, when first seen. Every
// value sent is a copy owned by the receiver; addresses that show up later
// on other interfaces are only visible through Instruments.
func (b *Browser) Browse(ctx context.Context) (<-chan *Instrument, error) {
	out := make(chan *Instrument)
	go func() {
		defer close(out)
		b.collect(ctx, func(inst *Instrument) bool {
			select {
			case out <- inst:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return out, nil
}

// collect runs one mDNS browse and aggregates entries by instance name until
// ctx is done or emit returns false. emit receives a copy of each new
// instance. The returned map is no longer touched once collect returns.
func (b *Browser) collect(ctx context.Context, emit func(*Instrument) bool) map[string]*Instrument {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		if err := b.browse(ctx, b.config.ServiceType, Domain, entries, removed, b.browserOptions()...); err != nil && ctx.Err() == nil {
			b.config.Logger.Warn("mdns browse failed", "service", b.config.ServiceType, "error", err)
		}
	}()

	services := make(map[string]*Instrument)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return services
			}
			inst := entryToInstrument(entry)
			if inst == nil {
				continue
			}
			if existing, found := services[inst.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, inst.Addresses)
				continue
			}
			services[inst.InstanceName] = inst
			if emit != nil && !emit(inst.clone()) {
				return services
			}

		case entry, ok := <-removed:
			if !ok {
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return services
		}
	}
}

// Instruments browses for the configured timeout and returns what was found,
// sorted by instance name.
func (b *Browser) Instruments(ctx context.Context) ([]*Instrument, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	services := b.collect(ctx, nil)
	found := make([]*Instrument, 0, len(services))
	for _, inst := range services {
		found = append(found, inst)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].InstanceName < found[j].InstanceName })
	return found, nil
}

// ListResources implements transport.Lister.
func (b *Browser) ListResources(ctx context.Context) ([]string, error) {
	found, err := b.Instruments(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, inst := range found {
		ids = append(ids, inst.ResourceIDs()...)
	}
	return ids, nil
}

// Find browses until an instrument whose instance name or model contains
// match (case-insensitive) appears. The result is a copy owned by the
// caller.
func (b *Browser) Find(ctx context.Context, match string) (*Instrument, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	match = strings.ToLower(match)
	var hit *Instrument
	b.collect(ctx, func(inst *Instrument) bool {
		if strings.Contains(strings.ToLower(inst.InstanceName), match) ||
			strings.Contains(strings.ToLower(inst.Model), match) {
			hit = inst
			return false
		}
		return true
	})
	if hit == nil {
		return nil, ErrNotFound
	}
	return hit, nil
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.config.Logger.Warn("mdns interface not found, using all", "interface", b.config.Interface)
		}
	}
	return opts
}

// entryToInstrument converts a zeroconf entry. Entries without a port or
// address are dropped.
func entryToInstrument(entry *zeroconf.ServiceEntry) *Instrument {
	if entry == nil || entry.Port <= 0 || entry.Port > 65535 {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	if len(addrs) == 0 {
		return nil
	}

	txt := StringsToTXTRecords(entry.Text)
	return &Instrument{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Manufacturer: txt.get(TXTKeyManufacturer),
		Model:        txt.get(TXTKeyModel),
		Serial:       txt.get(TXTKeySerial),
		Firmware:     txt.get(TXTKeyFirmware),
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the addresses of a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
