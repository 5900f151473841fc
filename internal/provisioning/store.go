package provisioning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Configuration keys held in the device_config table.
const (
	KeyThingName = "thing_name"
	KeyRegion    = "region"
	KeyClientID  = "client_id"
	KeyCertPEM   = "cert_pem"
	KeyKeyPEM    = "key_pem"
	KeyRootCAPEM = "root_ca_pem"
)

// Keys returns every key the store accepts.
func Keys() []string {
	return []string{KeyThingName, KeyRegion, KeyClientID, KeyCertPEM, KeyKeyPEM, KeyRootCAPEM}
}

// Entry is one stored configuration value.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Reader reads single configuration values.
type Reader interface {
	Get(ctx context.Context, key string) (string, error)
}

// Store persists device configuration in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store over db. The device_config table must exist
// (see migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the value stored for key, or ErrNotConfigured.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM device_config WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_config (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an unset key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM device_config WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// List returns every stored entry ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value, updated_at FROM device_config ORDER BY key",
	)
	if err != nil {
		return nil, fmt.Errorf("querying device config: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			updatedAt string
		)
		if err := rows.Scan(&e.Key, &e.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning device config: %w", err)
		}
		e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device config: %w", err)
	}
	return entries, nil
}

// Reset removes every stored value (factory reset).
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM device_config"); err != nil {
		return fmt.Errorf("resetting device config: %w", err)
	}
	return nil
}

func checkKey(key string) error {
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}
