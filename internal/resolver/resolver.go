// Package resolver picks the single client certificate to present for a
// connection, from a configured identifier that names either a certificate
// file or a subject common name in the user certificate store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/croftsec/certpick"
	"github.com/croftsec/certpick/internal/config"
	"github.com/croftsec/certpick/internal/store"
)

// PasswordProvider supplies the password for a protected certificate file.
// Implementations resolve credentials externally (askpass command, terminal
// prompt); the resolver treats any error or empty result as "no password
// available", never as fatal.
type PasswordProvider interface {
	GetPassword(identifier string) (string, error)
}

// Resolver resolves at most one client certificate per call. It is invoked
// synchronously, once per connection setup; distinct resolvers may share one
// config value, which is immutable after construction.
type Resolver struct {
	cfg       *config.SSL
	open      store.Opener
	passwords PasswordProvider
	verifier  *certpick.Verifier
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStoreOpener sets how the user certificate store is opened. The default
// opens the SQLite store at its standard location.
func WithStoreOpener(open store.Opener) Option {
	return func(r *Resolver) { r.open = open }
}

// WithPasswordProvider sets the external credential collaborator.
func WithPasswordProvider(p PasswordProvider) Option {
	return func(r *Resolver) { r.passwords = p }
}

// WithVerifier sets the chain validator. The default verifies against the
// configured CA info file or the system roots.
func WithVerifier(v *certpick.Verifier) Option {
	return func(r *Resolver) { r.verifier = v }
}

// WithLogger sets the tracing sink for resolution events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New builds a Resolver for the given settings.
func New(cfg *config.SSL, opts ...Option) (*Resolver, error) {
	if cfg == nil {
		cfg = config.FromValues(nil)
	}
	r := &Resolver{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}

	if r.open == nil {
		r.open = func() (store.Store, error) {
			path, err := store.DefaultPath()
			if err != nil {
				return nil, err
			}
			return store.OpenSQLite(path)
		}
	}

	if r.verifier == nil {
		v, err := certpick.NewVerifier(certpick.VerifierOptions{CAInfoPath: cfg.CAInfoPath})
		if err != nil {
			return nil, fmt.Errorf("building verifier: %w", err)
		}
		r.verifier = v
	}

	return r, nil
}

// Resolve locates the configured client certificate: file-based lookup first,
// then the user certificate store. Returns nil when no certificate is
// configured or none could be resolved; no outcome is fatal to the caller.
func (r *Resolver) Resolve(ctx context.Context) *certpick.Credential {
	if r.cfg.Identifier == "" {
		return nil
	}

	log := r.logger.With(
		"sslCert", r.cfg.Identifier,
		"sslCertPasswordProtected", r.cfg.PasswordProtected,
		"sslVerify", r.cfg.Verify,
	)

	if cred := r.resolveFromFile(ctx, log); cred != nil {
		return cred
	}
	if cred := r.resolveFromStore(ctx, log); cred != nil {
		return cred
	}

	log.ErrorContext(ctx, fmt.Sprintf("certificate %s not found", r.cfg.Identifier))
	return nil
}

// resolveFromFile loads the certificate when the identifier names an existing
// file. A missing file is the normal "identifier is a store subject" case and
// returns nil silently.
func (r *Resolver) resolveFromFile(ctx context.Context, log *slog.Logger) *certpick.Credential {
	password := ""
	if r.cfg.PasswordProtected {
		pw, err := r.certificatePassword()
		if err != nil || pw == "" {
			// Loading still proceeds with an empty password: some protected
			// files load anyway because the OS caches the key material.
			log.WarnContext(ctx, "no password available for certificate, attempting with empty password", "error", err)
		} else {
			password = pw
		}
	}

	if _, err := os.Stat(r.cfg.Identifier); err != nil {
		return nil
	}

	cred, err := certpick.LoadCredentialFile(r.cfg.Identifier, r.cfg.KeyPath, password)
	if err != nil {
		log.ErrorContext(ctx, "loading certificate file", "error", err)
		return nil
	}

	if r.cfg.Verify && !r.verifier.Valid(cred.Leaf, cred.Chain) {
		log.WarnContext(ctx, "certificate file found but the certificate is invalid", "subject", certpick.FormatDN(cred.Leaf))
		return nil
	}

	log.InfoContext(ctx, "certificate loaded from file", "subject", certpick.FormatDN(cred.Leaf))
	return cred
}

// resolveFromStore searches the user certificate store for the identifier as
// a subject name. The store handle is scoped to this call and released on
// every path.
func (r *Resolver) resolveFromStore(ctx context.Context, log *slog.Logger) *certpick.Credential {
	st, err := r.open()
	if err != nil {
		log.ErrorContext(ctx, "opening certificate store", "error", err)
		return nil
	}
	defer func() { _ = st.Close() }()

	matches, err := st.FindBySubject(r.cfg.Identifier, r.cfg.Verify)
	if err != nil {
		log.ErrorContext(ctx, "searching certificate store", "error", err)
		return nil
	}
	if len(matches) == 0 {
		// The caller's final "not found" event covers this case.
		return nil
	}

	logCandidates(ctx, log, "store certificates matching subject name", matches)

	candidates := r.rank(filterUsable(matches, r.cfg.Identifier))

	ranked := make([]*store.Identity, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.identity
	}
	logCandidates(ctx, log, "usable certificates after filtering and ranking", ranked)

	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0].identity
	return &certpick.Credential{
		Leaf:       best.Cert,
		PrivateKey: best.Key,
		Chain:      best.Chain,
	}
}

func (r *Resolver) certificatePassword() (string, error) {
	if r.passwords == nil {
		return "", errors.New("no password provider configured")
	}
	return r.passwords.GetPassword(r.cfg.Identifier)
}

// logCandidates emits one event whose severity follows the candidate count
// (0 is an error, 1 is informational, more than one is worth a warning),
// listing the distinguished names in order.
func logCandidates(ctx context.Context, log *slog.Logger, msg string, ids []*store.Identity) {
	subjects := make([]string, 0, len(ids))
	for _, id := range ids {
		subjects = append(subjects, certpick.FormatDN(id.Cert))
	}
	log.Log(ctx, severityFor(len(ids)), fmt.Sprintf("%d %s", len(ids), msg), "subjects", subjects)
}

// severityFor maps a candidate count to the event severity used for store
// lookup reporting.
func severityFor(count int) slog.Level {
	switch count {
	case 0:
		return slog.LevelError
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
