package certpick

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/breml/rootcerts/embedded"
)

// VerifierOptions configures trust anchors for client chain validation.
type VerifierOptions struct {
	// CAInfoPath optionally names a trust-anchor file (PEM bundle or JKS
	// truststore) that replaces the system pool, mirroring http.sslCAInfo.
	CAInfoPath string
	// CAInfoPassword decrypts a JKS truststore named by CAInfoPath.
	// Defaults to "changeit", the Java convention.
	CAInfoPassword string
	// UseMozillaRoots selects the embedded Mozilla bundle instead of the
	// system pool. It is also the fallback when the system pool cannot be
	// loaded.
	UseMozillaRoots bool
	// Roots overrides pool construction entirely (tests).
	Roots *x509.CertPool
	// Now supplies the validation time; defaults to time.Now.
	Now func() time.Time
}

// Verifier validates client certificate chains against a fixed root pool.
// Chain validation is a boolean question here: a certificate that does not
// verify is unusable, never an error to the caller.
type Verifier struct {
	roots *x509.CertPool
	now   func() time.Time
}

// NewVerifier builds a Verifier from the given options. Pool priority:
// explicit Roots, then CAInfoPath, then Mozilla (when selected), then the
// system pool with Mozilla as fallback.
func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if opts.Roots != nil {
		return &Verifier{roots: opts.Roots, now: now}, nil
	}

	if opts.CAInfoPath != "" {
		pool, err := poolFromCAInfo(opts.CAInfoPath, opts.CAInfoPassword)
		if err != nil {
			return nil, err
		}
		return &Verifier{roots: pool, now: now}, nil
	}

	if opts.UseMozillaRoots {
		pool, err := mozillaPool()
		if err != nil {
			return nil, err
		}
		return &Verifier{roots: pool, now: now}, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool, err = mozillaPool()
		if err != nil {
			return nil, fmt.Errorf("no usable root pool: %w", err)
		}
	}
	return &Verifier{roots: pool, now: now}, nil
}

// Valid reports whether the certificate chains to a trusted root at the
// verifier's current time. extras are candidate intermediates (for example
// the rest of a loaded file or a store entry's chain). Client-auth EKU is
// accepted alongside any-EKU so certificates without an EKU extension still
// verify.
func (v *Verifier) Valid(cert *x509.Certificate, extras []*x509.Certificate) bool {
	if cert == nil {
		return false
	}
	intermediates := x509.NewCertPool()
	for _, c := range extras {
		intermediates.AddCert(c)
	}
	_, err := cert.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   v.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageAny},
	})
	return err == nil
}

// poolFromCAInfo loads a trust pool from a PEM bundle or a JKS truststore.
func poolFromCAInfo(path, jksPassword string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA info %s: %w", path, err)
	}

	pool := x509.NewCertPool()

	if IsJKS(data) {
		if jksPassword == "" {
			jksPassword = "changeit"
		}
		certs, err := DecodeJKSTrustAnchors(data, jksPassword)
		if err != nil {
			return nil, fmt.Errorf("loading truststore %s: %w", path, err)
		}
		for _, cert := range certs {
			pool.AddCert(cert)
		}
		return pool, nil
	}

	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates parsed from %s", path)
	}
	return pool, nil
}

// mozillaPool builds a pool from the embedded Mozilla root bundle.
func mozillaPool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(embedded.MozillaCACertificatesPEM())) {
		return nil, errors.New("parsing embedded Mozilla root certificates")
	}
	return pool, nil
}
