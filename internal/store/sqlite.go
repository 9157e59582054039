package store

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/croftsec/certpick"
)

// identityRow maps a row in the identities table.
type identityRow struct {
	Subject    string    `db:"subject"`
	CommonName string    `db:"common_name"`
	NotBefore  time.Time `db:"not_before"`
	NotAfter   time.Time `db:"not_after"`
	CertPEM    []byte    `db:"cert_pem"`
	KeyPEM     []byte    `db:"key_pem"`
	ChainPEM   []byte    `db:"chain_pem"`
}

// SQLiteStore is the persistent user-scoped certificate store, opened
// read-only. The resolver never creates or mutates it.
type SQLiteStore struct {
	db *sqlx.DB
}

// DefaultPath returns the user-scoped store location,
// <user config dir>/certpick/store.db.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(dir, "certpick", "store.db"), nil
}

// OpenSQLite opens the store file read-only. The file must already exist;
// a missing store is an open error, which the resolver reports and absorbs.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store %s: %w", path, err)
	}
	dsn := "file:" + path + "?mode=ro&_pragma=query_only(1)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// FindBySubject implements Store. The substring match runs in SQL over the
// recorded subject DN; validOnly adds a validity-window range on the recorded
// timestamps. This is the coarse store query only; callers apply their own
// strict predicate over the result.
func (s *SQLiteStore) FindBySubject(substr string, validOnly bool) ([]*Identity, error) {
	query := `SELECT subject, common_name, not_before, not_after, cert_pem, key_pem, chain_pem
		FROM identities WHERE instr(subject, ?) > 0`
	args := []any{substr}
	if validOnly {
		query += ` AND not_before <= ? AND not_after >= ?`
		now := time.Now()
		args = append(args, now, now)
	}

	var rows []identityRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}

	identities := make([]*Identity, 0, len(rows))
	for _, row := range rows {
		id, err := rowToIdentity(row)
		if err != nil {
			return nil, err
		}
		identities = append(identities, id)
	}
	return identities, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func rowToIdentity(row identityRow) (*Identity, error) {
	block, _ := pem.Decode(row.CertPEM)
	if block == nil {
		return nil, fmt.Errorf("store entry %q: no certificate PEM", row.CommonName)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("store entry %q: %w", row.CommonName, err)
	}

	id := &Identity{Cert: cert}

	if len(row.KeyPEM) > 0 {
		key, err := certpick.ParsePEMPrivateKey(row.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("store entry %q key: %w", row.CommonName, err)
		}
		id.Key = key
	}

	if len(row.ChainPEM) > 0 {
		chain, err := certpick.ParsePEMCertificates(row.ChainPEM)
		if err != nil {
			return nil, fmt.Errorf("store entry %q chain: %w", row.CommonName, err)
		}
		id.Chain = chain
	}

	return id, nil
}

// SaveToSQLite writes identities to a store file, creating it if needed.
// This is a seeding and test utility; resolution itself never writes.
func SaveToSQLite(identities []*Identity, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", "file:"+path)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", path, err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS identities (
			subject     text NOT NULL,
			common_name text,
			not_before  timestamp NOT NULL,
			not_after   timestamp NOT NULL,
			cert_pem    blob NOT NULL,
			key_pem     blob,
			chain_pem   blob,
			PRIMARY KEY(subject, not_before, not_after)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating identities table: %w", err)
	}

	for _, id := range identities {
		row, err := identityToRow(id)
		if err != nil {
			return err
		}
		_, err = db.NamedExec(`
			INSERT OR IGNORE INTO identities (subject, common_name, not_before, not_after, cert_pem, key_pem, chain_pem)
			VALUES (:subject, :common_name, :not_before, :not_after, :cert_pem, :key_pem, :chain_pem)
		`, row)
		if err != nil {
			return fmt.Errorf("saving %q: %w", row.CommonName, err)
		}
	}
	return nil
}

func identityToRow(id *Identity) (identityRow, error) {
	row := identityRow{
		Subject:    id.Cert.Subject.String(),
		CommonName: id.Cert.Subject.CommonName,
		NotBefore:  id.Cert.NotBefore,
		NotAfter:   id.Cert.NotAfter,
		CertPEM:    pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Cert.Raw}),
	}

	if id.Key != nil {
		der, err := x509.MarshalPKCS8PrivateKey(id.Key)
		if err != nil {
			return identityRow{}, fmt.Errorf("marshaling key for %q: %w", row.CommonName, err)
		}
		row.KeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	}

	if len(id.Chain) > 0 {
		var chainPEM []byte
		for _, cert := range id.Chain {
			chainPEM = append(chainPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
		}
		row.ChainPEM = chainPEM
	}

	return row, nil
}
