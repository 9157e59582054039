package resolver

import (
	"slices"

	"github.com/croftsec/certpick"
	"github.com/croftsec/certpick/internal/store"
)

// candidate pairs a store identity with its lazily computed validity.
// Chain validation is expensive, so it runs at most once per candidate,
// and only when ranking actually needs it.
type candidate struct {
	identity *store.Identity
	verifier *certpick.Verifier
	valid    *bool
}

// currentlyValid reports whether the candidate chain-validates right now.
func (c *candidate) currentlyValid() bool {
	if c.valid == nil {
		v := c.verifier.Valid(c.identity.Cert, c.identity.Chain)
		c.valid = &v
	}
	return *c.valid
}

// filterUsable applies the strict in-memory predicate over the store's coarse
// result set: the entry must hold a private key and carry a CN component that
// equals the identifier verbatim. The store's own substring matching is a
// pre-filter only, never relied on for correctness.
func filterUsable(ids []*store.Identity, identifier string) []*store.Identity {
	var usable []*store.Identity
	for _, id := range ids {
		if !id.HasPrivateKey() {
			continue
		}
		if !certpick.SubjectHasExactCN(id.Cert, identifier) {
			continue
		}
		usable = append(usable, id)
	}
	return usable
}

// rank orders candidates best-first: currently-valid certificates before
// invalid ones, then earliest NotBefore (an established certificate is less
// likely to be a rollout in progress than a brand-new one), then latest
// NotAfter as the final tie-break.
func (r *Resolver) rank(ids []*store.Identity) []*candidate {
	candidates := make([]*candidate, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, &candidate{identity: id, verifier: r.verifier})
	}

	slices.SortStableFunc(candidates, func(a, b *candidate) int {
		av, bv := a.currentlyValid(), b.currentlyValid()
		if av != bv {
			if av {
				return -1
			}
			return 1
		}
		if c := a.identity.Cert.NotBefore.Compare(b.identity.Cert.NotBefore); c != 0 {
			return c
		}
		return b.identity.Cert.NotAfter.Compare(a.identity.Cert.NotAfter)
	})

	return candidates
}
