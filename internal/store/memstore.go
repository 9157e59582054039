package store

import (
	"strings"
	"time"
)

// MemStore is an in-memory Store. It backs tests and store seeding; the
// persistent user store is SQLiteStore.
type MemStore struct {
	identities []*Identity
	// Now supplies the clock for the validOnly hint; nil disables the hint
	// so searches behave like a platform without validity filtering.
	Now func() time.Time
}

// NewMemStore creates an empty MemStore that ignores the validOnly hint.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Add appends an identity to the store.
func (s *MemStore) Add(id *Identity) {
	s.identities = append(s.identities, id)
}

// All returns the identities in insertion order.
func (s *MemStore) All() []*Identity {
	return s.identities
}

// FindBySubject implements Store with a substring match over the RFC 2253
// subject string. When a clock is configured, validOnly excludes entries
// outside their validity window.
func (s *MemStore) FindBySubject(substr string, validOnly bool) ([]*Identity, error) {
	var matches []*Identity
	for _, id := range s.identities {
		if !strings.Contains(id.Cert.Subject.String(), substr) {
			continue
		}
		if validOnly && s.Now != nil {
			now := s.Now()
			if now.Before(id.Cert.NotBefore) || now.After(id.Cert.NotAfter) {
				continue
			}
		}
		matches = append(matches, id)
	}
	return matches, nil
}

// Close implements Store. A MemStore holds no external resources.
func (s *MemStore) Close() error { return nil }
