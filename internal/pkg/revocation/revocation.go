// Package revocation keeps the identifiers of access tokens that were
// logged out before their natural expiry.
package revocation

import (
	"context"
	"sync"
	"time"
)

// List records revoked token identifiers until they would have expired anyway
type List interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryList is a process-local List
type MemoryList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryList creates an empty MemoryList
func NewMemoryList() *MemoryList {
	return &MemoryList{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke implements List
func (l *MemoryList) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.entries {
		if !exp.After(now) {
			delete(l.entries, k)
		}
	}
	if expiresAt.After(now) {
		l.entries[jti] = expiresAt
	}
	return nil
}

// IsRevoked implements List
func (l *MemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.entries[jti]
	return ok && exp.After(l.now()), nil
}
