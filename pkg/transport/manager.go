package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// StaticLister lists a fixed set of resource ids, e.g. from configuration.
type StaticLister []string

// ListResources returns the configured ids.
func (s StaticLister) ListResources(context.Context) ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLister adds a resource source. Sources are listed in the order added.
func WithLister(l Lister) ManagerOption {
	return func(m *Manager) { m.listers = append(m.listers, l) }
}

// WithResources adds static resource ids.
func WithResources(ids ...string) ManagerOption {
	return WithLister(StaticLister(ids))
}

// WithOpener registers the opener for one bus interface.
func WithOpener(kind Interface, o Opener) ManagerOption {
	return func(m *Manager) { m.openers[kind] = o }
}

// WithManagerLogger sets the logger for source failures.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// Manager aggregates resource sources and dispatches Open by bus interface.
type Manager struct {
	listers []Lister
	openers map[Interface]Opener
	logger  *slog.Logger
}

// NewManager creates a manager. A SocketOpener is registered for TCPIP
// unless replaced by an option.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		openers: map[Interface]Opener{InterfaceTCPIP: &SocketOpener{}},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListResources returns the ids of all sources, de-duplicated
// (case-insensitive) in source order. A failing source is skipped and
// logged; the call fails only if every source failed.
func (m *Manager) ListResources(ctx context.Context) ([]string, error) {
	var (
		ids  []string
		errs []error
		seen = make(map[string]bool)
	)
	for _, l := range m.listers {
		found, err := l.ListResources(ctx)
		if err != nil {
			m.logger.Warn("resource source failed", "error", err)
			errs = append(errs, err)
			continue
		}
		for _, id := range found {
			key := strings.ToLower(strings.TrimSpace(id))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			ids = append(ids, strings.TrimSpace(id))
		}
	}
	if len(errs) > 0 && len(errs) == len(m.listers) {
		return nil, fmt.Errorf("list resources: %w", errors.Join(errs...))
	}
	return ids, nil
}

// Open parses id and opens it with the opener for its interface.
func (m *Manager) Open(ctx context.Context, id string) (Resource, error) {
	rid, err := ParseResourceID(id)
	if err != nil {
		return nil, err
	}
	o, ok := m.openers[rid.Interface]
	if !ok || o == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInterface, rid.Interface)
	}
	return o.Open(ctx, rid)
}
