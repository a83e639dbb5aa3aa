// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/nacl/secretbox"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/sentinel-tui/internal/api"
	"github.com/jeranaias/sentinel-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound means no credential is stored.
	ErrNotFound = errors.New("no stored credential")

	// ErrCorrupt means a stored record is partial, unreadable, or was sealed
	// under a different key. Callers purge and start anonymous.
	ErrCorrupt = errors.New("stored credential is corrupt")
)

// Fixed record keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

const (
	keySize   = 32
	nonceSize = 24
)

// =============================================================================
// STORE
// =============================================================================

// Credentials is the persisted session.
type Credentials struct {
	Token    string
	Identity api.Identity
	SavedAt  time.Time
}

// Config locates the database and the sealing key.
type Config struct {
	Path    string
	KeyPath string
}

// Store is the SQLite-backed credential store.
type Store struct {
	db  *sql.DB
	key *[keySize]byte
	mu  sync.Mutex
}

// Open opens (creating if needed) the store and its sealing key.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" || cfg.KeyPath == "" {
		return nil, errors.New("store path and key path are required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	key, err := loadOrCreateKey(cfg.KeyPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if err := os.Chmod(cfg.Path, 0600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("failed to restrict database permissions: %w", err)
	}

	return &Store{db: db, key: key}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored credential, ErrNotFound if there is none, or
// ErrCorrupt if only part of it is present or it cannot be unsealed.
func (s *Store) Load(ctx context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM credentials WHERE key IN (?, ?)`, KeyToken, KeyUser)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	values := make(map[string][]byte, 2)
	var savedAt int64
	for rows.Next() {
		var k string
		var v []byte
		var at int64
		if err := rows.Scan(&k, &v, &at); err != nil {
			return Credentials{}, fmt.Errorf("failed to scan credential: %w", err)
		}
		values[k] = v
		if at > savedAt {
			savedAt = at
		}
	}
	if err := rows.Err(); err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	sealed, hasToken := values[KeyToken]
	user, hasUser := values[KeyUser]
	switch {
	case !hasToken && !hasUser:
		return Credentials{}, ErrNotFound
	case !hasToken || !hasUser:
		return Credentials{}, fmt.Errorf("%w: partial record", ErrCorrupt)
	}

	token, err := s.open(sealed)
	if err != nil {
		return Credentials{}, err
	}

	var identity api.Identity
	if err := json.Unmarshal(user, &identity); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if identity.Username == "" || !identity.Role.Valid() {
		return Credentials{}, fmt.Errorf("%w: incomplete identity", ErrCorrupt)
	}

	return Credentials{
		Token:    token,
		Identity: identity,
		SavedAt:  time.Unix(0, savedAt),
	}, nil
}

// Save replaces the stored credential in one transaction.
func (s *Store) Save(ctx context.Context, creds Credentials) error {
	if creds.Token == "" {
		return errors.New("refusing to store an empty token")
	}
	user, err := json.Marshal(creds.Identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	sealed, err := s.seal(creds.Token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	const upsert = `INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, KeyToken, sealed, now); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, KeyUser, user, now); err != nil {
		return fmt.Errorf("failed to store identity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	return nil
}

// Purge removes the stored credential. Purging an empty store is not an error.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE key IN (?, ?)`, KeyToken, KeyUser); err != nil {
		return fmt.Errorf("failed to purge credentials: %w", err)
	}
	return nil
}

// =============================================================================
// SEALING
// =============================================================================

func (s *Store) seal(token string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(token), &nonce, s.key), nil
}

func (s *Store) open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: sealed token too short", ErrCorrupt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return "", fmt.Errorf("%w: token cannot be unsealed", ErrCorrupt)
	}
	return string(plain), nil
}

// loadOrCreateKey reads the sealing key, generating it on first use.
func loadOrCreateKey(path string) (*[keySize]byte, error) {
	var key [keySize]byte

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) != keySize {
			return nil, fmt.Errorf("key file %s has %d bytes, want %d", path, len(data), keySize)
		}
		copy(key[:], data)
		return &key, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := util.AtomicWriteFile(path, key[:], 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return &key, nil
}
