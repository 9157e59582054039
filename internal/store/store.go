// Package store provides read access to the user-scoped certificate store the
// resolver searches when an identifier is not a file path. The store is an
// external resource: opened read-only, searched once, and closed before the
// resolution call returns.
package store

import (
	"crypto"
	"crypto/x509"
)

// Identity is one store entry: a certificate, the private key when one is
// held for it, and any chain certificates recorded alongside.
type Identity struct {
	Cert  *x509.Certificate
	Key   crypto.PrivateKey
	Chain []*x509.Certificate
}

// HasPrivateKey reports whether the store holds a private key for this entry.
func (id *Identity) HasPrivateKey() bool {
	return id != nil && id.Key != nil
}

// Store is a read-only view of a certificate store.
type Store interface {
	// FindBySubject returns all identities whose subject distinguished name
	// contains substr. validOnly is a pre-filter hint: a backend that can
	// cheaply exclude entries outside their validity window may do so, but
	// callers must not rely on it for correctness.
	FindBySubject(substr string, validOnly bool) ([]*Identity, error)

	// Close releases the store handle. Safe to call once per Open.
	Close() error
}

// Opener opens the store. The resolver calls it once per store-based lookup
// and always closes the result.
type Opener func() (Store, error)
