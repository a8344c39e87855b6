package transport

import "context"

// Resource is an open instrument.
// Implemented by SocketConn and PrologixConn.
type Resource interface {
	// Write sends one command line.
	Write(ctx context.Context, cmd string) error

	// Query sends one command line and reads one reply line.
	Query(ctx context.Context, cmd string) (string, error)

	// Close releases the resource.
	Close() error
}

// Lister enumerates resource ids.
// Implemented by StaticLister and discovery.Browser.
type Lister interface {
	ListResources(ctx context.Context) ([]string, error)
}

// Opener opens resources of one bus interface.
// Implemented by SocketOpener and PrologixOpener.
type Opener interface {
	Open(ctx context.Context, id ResourceID) (Resource, error)
}

// ResourceManager enumerates and opens resources.
// Implemented by Manager.
type ResourceManager interface {
	Lister

	// Open opens the resource with the given id.
	Open(ctx context.Context, id string) (Resource, error)
}

// LineReadWriter provides terminated line I/O.
// Implemented by Framer.
type LineReadWriter interface {
	ReadLine() (string, error)
	WriteLine(line string) error
}

// Compile-time interface satisfaction checks.
var (
	_ Resource        = (*SocketConn)(nil)
	_ Resource        = (*PrologixConn)(nil)
	_ Lister          = StaticLister(nil)
	_ Opener          = (*SocketOpener)(nil)
	_ Opener          = (*PrologixOpener)(nil)
	_ ResourceManager = (*Manager)(nil)
	_ LineReadWriter  = (*Framer)(nil)
)
