// Package aeregistry maps DICOM application entity titles to network
// addresses. A service provider uses it to find C-MOVE destinations.
package aeregistry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownAE is returned when an AE title has no address.
var ErrUnknownAE = errors.New("aeregistry: unknown AE title")

// Resolver finds the "host:port" of an AE title.
type Resolver interface {
	Resolve(ctx context.Context, aeTitle string) (string, error)
}

// StaticRegistry is an in-memory table. It is safe for concurrent use.
type StaticRegistry struct {
	mu    sync.RWMutex
	addrs map[string]string
}

// NewStaticRegistry creates a registry holding a copy of addrs, keyed by AE
// title.
func NewStaticRegistry(addrs map[string]string) *StaticRegistry {
	r := &StaticRegistry{addrs: map[string]string{}}
	for ae, addr := range addrs {
		r.addrs[ae] = addr
	}
	return r
}

// Set adds or replaces an entry.
func (r *StaticRegistry) Set(aeTitle, addr string) error {
	if err := validate(aeTitle, addr); err != nil {
		return err
	}
	r.mu.Lock()
	r.addrs[aeTitle] = addr
	r.mu.Unlock()
	return nil
}

// Delete removes an entry, if any.
func (r *StaticRegistry) Delete(aeTitle string) {
	r.mu.Lock()
	delete(r.addrs, aeTitle)
	r.mu.Unlock()
}

// Resolve implements Resolver.
func (r *StaticRegistry) Resolve(_ context.Context, aeTitle string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.addrs[aeTitle]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAE, aeTitle)
	}
	return addr, nil
}

// Titles returns the registered AE titles, sorted.
func (r *StaticRegistry) Titles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	titles := make([]string, 0, len(r.addrs))
	for ae := range r.addrs {
		titles = append(titles, ae)
	}
	sort.Strings(titles)
	return titles
}

func validate(aeTitle, addr string) error {
	if aeTitle == "" || len(aeTitle) > 16 {
		return fmt.Errorf("aeregistry: invalid AE title %q", aeTitle)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("aeregistry: address of %s: %w", aeTitle, err)
	}
	return nil
}

// ParseRemoteAEs parses a list of "AETITLE=host:port" entries, as found in
// command-line flags and config files.
func ParseRemoteAEs(entries []string) (*StaticRegistry, error) {
	r := NewStaticRegistry(nil)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ae, addr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("aeregistry: entry %q is not AETITLE=host:port", entry)
		}
		if err := r.Set(strings.TrimSpace(ae), strings.TrimSpace(addr)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Chain tries each resolver in turn and returns the first address found.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, aeTitle string) (string, error) {
	for _, r := range c {
		addr, err := r.Resolve(ctx, aeTitle)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, ErrUnknownAE) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAE, aeTitle)
}
