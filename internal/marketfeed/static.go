package marketfeed

import (
	"context"
	"strings"
	"sync"

	"agent-arena/internal/domain"
)

// StaticFeed serves snapshots from a fixed map. Used by tests and dry runs.
type StaticFeed struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.MarketSnapshot
}

// NewStaticFeed creates a feed from the given snapshots.
func NewStaticFeed(snapshots ...*domain.MarketSnapshot) *StaticFeed {
	f := &StaticFeed{snapshots: make(map[string]*domain.MarketSnapshot)}
	for _, s := range snapshots {
		f.Set(s)
	}
	return f
}

// Set installs or replaces the snapshot for a token.
func (f *StaticFeed) Set(s *domain.MarketSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *s
	copy.TokenAddress = strings.ToLower(s.TokenAddress)
	f.snapshots[copy.TokenAddress] = &copy
}

// Get returns the configured snapshot, or ErrNoSnapshot.
func (f *StaticFeed) Get(_ context.Context, tokenAddress string) (*domain.MarketSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s, ok := f.snapshots[strings.ToLower(tokenAddress)]
	if !ok {
		return nil, ErrNoSnapshot
	}
	copy := *s
	return &copy, nil
}

var _ Feed = (*StaticFeed)(nil)
