// Package discovery finds LAN instruments with mDNS/DNS-SD.
//
// Instruments and LAN/GPIB gateways that accept raw SCPI-style commands
// advertise the _scpi-raw._tcp service (LXI devices additionally advertise
// _lxi._tcp). Each advertised address becomes one raw socket resource id:
//
//	TCPIP0::<address>::<port>::SOCKET
//
// Browser implements transport.Lister so discovered instruments can be
// combined with statically configured resources in a transport.Manager.
//
// # TXT Records
//
// The LXI discovery keys are used when present: Manufacturer, Model,
// SerialNumber and FirmwareVersion. They are informational; selection
// happens on the resource id.
//
// Advertiser publishes the same service, which lets the vp-sim emulator be
// found like a real instrument.
package discovery
