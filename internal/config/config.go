// Package config builds the resolver's immutable SSL settings from git-style
// configuration: a mapping from key to the ordered list of values the key has
// been assigned, where only the last value is authoritative.
package config

import (
	"strings"
)

// Recognized configuration keys.
const (
	KeySSLCert             = "http.sslcert"
	KeySSLCertPasswordFlag = "http.sslcertpasswordprotected"
	KeySSLVerify           = "http.sslverify"
	KeySSLKey              = "http.sslkey"
	KeySSLCAInfo           = "http.sslcainfo"
)

// SSL holds the settings that drive client certificate resolution. It is
// built once and never mutated afterwards; a single SSL value is safe to
// share across resolver instances.
type SSL struct {
	// Identifier names either a certificate file path or a store subject
	// common name. Empty means no client certificate is requested.
	Identifier string
	// PasswordProtected marks the certificate file as password-protected.
	PasswordProtected bool
	// Verify requires chain validation of any loaded certificate. It
	// defaults to true, matching the transport's own verify setting.
	Verify bool
	// KeyPath optionally names a separate private key file (http.sslKey).
	KeyPath string
	// CAInfoPath optionally names a trust-anchor file (http.sslCAInfo).
	CAInfoPath string
}

// FromValues builds SSL settings from a key → value-list mapping. Keys are
// matched case-insensitively, as git treats the section and variable parts of
// configuration names. A nil map yields the documented defaults. Unparseable
// booleans keep their defaults.
func FromValues(values map[string][]string) *SSL {
	ssl := &SSL{Verify: true}
	if values == nil {
		return ssl
	}

	for key, vals := range values {
		v, ok := lastValue(vals)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case KeySSLCert:
			ssl.Identifier = v
		case KeySSLCertPasswordFlag:
			if b, ok := ParseBool(v); ok {
				ssl.PasswordProtected = b
			}
		case KeySSLVerify:
			if b, ok := ParseBool(v); ok {
				ssl.Verify = b
			}
		case KeySSLKey:
			ssl.KeyPath = v
		case KeySSLCAInfo:
			ssl.CAInfoPath = v
		}
	}
	return ssl
}

// lastValue returns the authoritative (last) value of a multi-valued key.
func lastValue(vals []string) (string, bool) {
	if len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

// ParseBool parses a git-style boolean: true/yes/on/1 and false/no/off/0,
// case-insensitive. An empty value means true (a bare "[http] sslVerify" line
// in git config enables the flag). The second result reports whether the
// input was recognized.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	default:
		return false, false
	}
}
