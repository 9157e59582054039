// Package certpick locates and loads the client certificate an HTTPS
// transport should present, from either a certificate file or a local
// certificate store, given a single user-configured identifier.
package certpick

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ParsePEMCertificates parses all certificates from a PEM bundle.
func ParsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return certs, nil
}

// normalizeKey converts non-standard private key representations to their
// canonical Go form. Currently this dereferences *ed25519.PrivateKey (returned
// by ssh.ParseRawPrivateKey) to the value type ed25519.PrivateKey.
func normalizeKey(key crypto.PrivateKey) crypto.PrivateKey {
	if ptr, ok := key.(*ed25519.PrivateKey); ok {
		return *ptr
	}
	return key
}

// ParsePEMPrivateKey parses a PEM-encoded private key (PKCS#1, PKCS#8, SEC1,
// or OpenSSH). For "PRIVATE KEY" blocks it tries PKCS#8 first, then falls back
// to PKCS#1 and EC parsers to handle mislabeled keys (e.g., from pkcs12.ToPEM).
func ParsePEMPrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		return nil, errors.New("parsing PRIVATE KEY block with any known format")
	case "OPENSSH PRIVATE KEY":
		// OpenSSH format uses a proprietary encoding; delegate to x/crypto/ssh
		key, err := ssh.ParseRawPrivateKey(pemData)
		if err != nil {
			return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// ParsePEMPrivateKeyWithPassword tries to parse a PEM-encoded private key,
// decrypting it with the given password when the block is encrypted. An empty
// password is attempted like any other; failure to decrypt is an error, not a
// prompt for retry.
func ParsePEMPrivateKeyWithPassword(pemData []byte, password string) (crypto.PrivateKey, error) {
	if key, err := ParsePEMPrivateKey(pemData); err == nil {
		return key, nil
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	if block.Type == "OPENSSH PRIVATE KEY" {
		key, err := ssh.ParseRawPrivateKeyWithPassphrase(pemData, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	}

	//nolint:staticcheck // x509.IsEncryptedPEMBlock is deprecated but needed for legacy encrypted PEM support
	if !x509.IsEncryptedPEMBlock(block) {
		// Not encrypted and unencrypted parse failed; return the original error
		_, err := ParsePEMPrivateKey(pemData)
		return nil, err
	}

	//nolint:staticcheck // x509.DecryptPEMBlock is deprecated but needed for legacy encrypted PEM support
	decrypted, err := x509.DecryptPEMBlock(block, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	clearPEM := pem.EncodeToMemory(&pem.Block{
		Type:  block.Type,
		Bytes: decrypted,
	})
	return ParsePEMPrivateKey(clearPEM)
}

// oidCommonName is the X.500 attribute type for CN (2.5.4.3).
var oidCommonName = asn1.ObjectIdentifier{2, 5, 4, 3}

// SubjectHasExactCN reports whether any CN component of the certificate's
// subject equals name verbatim. A substring hit on the full distinguished
// name (e.g. CN=foobar when looking for "foo") is not a match; the CN
// attribute value itself must equal the identifier.
func SubjectHasExactCN(cert *x509.Certificate, name string) bool {
	if name == "" {
		return false
	}
	return nameHasExactCN(cert.Subject, name)
}

func nameHasExactCN(subject pkix.Name, name string) bool {
	for _, atv := range subject.Names {
		if !atv.Type.Equal(oidCommonName) {
			continue
		}
		if s, ok := atv.Value.(string); ok && s == name {
			return true
		}
	}
	// Subject.Names is empty for names built in-process (not parsed from DER).
	return subject.CommonName == name
}

// FormatDN returns the RFC 2253 distinguished name of the certificate's
// subject, for log and display output.
func FormatDN(cert *x509.Certificate) string {
	return cert.Subject.String()
}

// FormatDNs formats the subjects of several certificates as a single
// comma-space-joined list wrapped in brackets.
func FormatDNs(certs []*x509.Certificate) string {
	names := make([]string, 0, len(certs))
	for _, cert := range certs {
		names = append(names, "["+FormatDN(cert)+"]")
	}
	return strings.Join(names, ", ")
}

// IsPEM returns true if the data appears to contain PEM-encoded content.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}
