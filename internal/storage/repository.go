// Package storage persists each state store as a single versioned JSON
// document in the stores table, keyed by a fixed namespace string.
// A schema version tag travels with every document so record-shape changes
// can be migrated on load instead of silently breaking old payloads.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Namespaces for the persisted stores.
const (
	NamespaceHoldings  = "holdings"
	NamespaceBalance   = "balance"
	NamespaceWatchlist = "watchlist"
)

// MigrateFunc upgrades a raw document from an older schema version to the
// version the caller expects. It is invoked once per version step.
type MigrateFunc func(fromVersion int, data json.RawMessage) (json.RawMessage, error)

// Repository provides document operations on portfolio.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new document store repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "storage").Logger(),
	}
}

// Load reads the document stored under namespace into out.
// Returns false when no document exists (not an error).
// When the stored version is older than version, migrate is applied one
// version step at a time and the upgraded document is written back.
func (r *Repository) Load(namespace string, version int, migrate MigrateFunc, out interface{}) (bool, error) {
	var storedVersion int
	var data string
	err := r.db.QueryRow(
		"SELECT version, data FROM stores WHERE namespace = ?", namespace,
	).Scan(&storedVersion, &data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load store %s: %w", namespace, err)
	}

	raw := json.RawMessage(data)
	if storedVersion > version {
		return false, fmt.Errorf("store %s has version %d, newer than supported %d", namespace, storedVersion, version)
	}
	if storedVersion < version {
		if migrate == nil {
			return false, fmt.Errorf("store %s requires migration from version %d but no migration is registered", namespace, storedVersion)
		}
		for v := storedVersion; v < version; v++ {
			raw, err = migrate(v, raw)
			if err != nil {
				return false, fmt.Errorf("failed to migrate store %s from version %d: %w", namespace, v, err)
			}
		}
		r.log.Info().
			Str("namespace", namespace).
			Int("from", storedVersion).
			Int("to", version).
			Msg("Migrated store document")
		if err := r.save(namespace, version, raw); err != nil {
			return false, err
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode store %s: %w", namespace, err)
	}
	return true, nil
}

// Save serializes value and upserts it under namespace at the given version.
func (r *Repository) Save(namespace string, version int, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal store %s: %w", namespace, err)
	}
	return r.save(namespace, version, data)
}

func (r *Repository) save(namespace string, version int, data json.RawMessage) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO stores (namespace, version, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, namespace, version, string(data), now)
	if err != nil {
		return fmt.Errorf("failed to save store %s: %w", namespace, err)
	}
	return nil
}

// Delete removes the document stored under namespace.
func (r *Repository) Delete(namespace string) error {
	_, err := r.db.Exec("DELETE FROM stores WHERE namespace = ?", namespace)
	if err != nil {
		return fmt.Errorf("failed to delete store %s: %w", namespace, err)
	}
	return nil
}
