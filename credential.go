package certpick

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Credential is a client certificate ready to present during a TLS handshake:
// the leaf, its private key (when one could be located), and any accompanying
// chain certificates. A fresh Credential is produced per resolution; ownership
// passes to the caller.
type Credential struct {
	Leaf       *x509.Certificate
	PrivateKey crypto.PrivateKey
	Chain      []*x509.Certificate
}

// HasPrivateKey reports whether a private key accompanies the leaf.
func (c *Credential) HasPrivateKey() bool {
	return c != nil && c.PrivateKey != nil
}

// TLSCertificate converts the credential into a tls.Certificate suitable for
// tls.Config.Certificates. Fails when no private key is available.
func (c *Credential) TLSCertificate() (tls.Certificate, error) {
	if !c.HasPrivateKey() {
		return tls.Certificate{}, errors.New("credential has no private key")
	}
	tlsCert := tls.Certificate{
		Certificate: [][]byte{c.Leaf.Raw},
		PrivateKey:  c.PrivateKey,
		Leaf:        c.Leaf,
	}
	for _, cert := range c.Chain {
		tlsCert.Certificate = append(tlsCert.Certificate, cert.Raw)
	}
	return tlsCert, nil
}

// LoadCredentialFile reads a certificate file and returns the credential it
// contains. PEM input may carry the certificate and key in one file; keyPath
// optionally names a separate PEM private key file (http.sslKey). Binary input
// is tried as PKCS#12 (using password), then DER, then PKCS#7.
func LoadCredentialFile(certPath, keyPath, password string) (*Credential, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", certPath, err)
	}

	var keyData []byte
	if keyPath != "" {
		keyData, err = os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading key %s: %w", keyPath, err)
		}
	}

	return ParseCredential(data, keyData, password)
}

// ParseCredential parses raw certificate file content into a Credential.
// keyData optionally holds a separate PEM private key; password decrypts
// PKCS#12 input or an encrypted PEM key.
func ParseCredential(data, keyData []byte, password string) (*Credential, error) {
	if IsPEM(data) {
		return parsePEMCredential(data, keyData, password)
	}
	return parseBinaryCredential(data, password)
}

func parsePEMCredential(data, keyData []byte, password string) (*Credential, error) {
	certs, err := ParsePEMCertificates(data)
	if err != nil {
		return nil, err
	}

	cred := &Credential{Leaf: certs[0], Chain: certs[1:]}

	// Key may live in the cert file itself or in a separate sslKey file.
	if keyPEM := firstPrivateKeyBlock(data); keyPEM != nil {
		key, err := ParsePEMPrivateKeyWithPassword(keyPEM, password)
		if err != nil {
			return nil, fmt.Errorf("parsing embedded private key: %w", err)
		}
		cred.PrivateKey = key
	} else if len(keyData) > 0 {
		key, err := ParsePEMPrivateKeyWithPassword(keyData, password)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		cred.PrivateKey = key
	}

	return cred, nil
}

func parseBinaryCredential(data []byte, password string) (*Credential, error) {
	key, leaf, chain, p12Err := DecodePKCS12(data, password)
	if p12Err == nil {
		return &Credential{Leaf: leaf, PrivateKey: key, Chain: chain}, nil
	}

	if cert, derErr := x509.ParseCertificate(data); derErr == nil {
		return &Credential{Leaf: cert}, nil
	}

	if certs, p7Err := DecodePKCS7(data); p7Err == nil {
		return &Credential{Leaf: certs[0], Chain: certs[1:]}, nil
	}

	// PKCS#12 is the common binary client-cert format, so its error is the
	// one worth surfacing (a wrong password shows up here).
	return nil, p12Err
}

// firstPrivateKeyBlock returns the first PEM block whose type contains
// "PRIVATE KEY", re-encoded standalone, or nil if none is present.
func firstPrivateKeyBlock(data []byte) []byte {
	rest := data
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if strings.Contains(block.Type, "PRIVATE KEY") {
			return pem.EncodeToMemory(block)
		}
	}
	return nil
}
