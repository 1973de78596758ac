// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package userstore is the SQLite-backed store of users, their
// credential digests, and their sealed environment variables.
//
// It serves two read paths for the context service: credential lookup
// by digest (implementing auth.CredentialStore) and the caller's
// environment variables (implementing provision.EnvVarSource). The
// write methods exist for operators and tests; issuing credentials is
// another system's job.
//
// Raw tokens never reach this package: credentials are stored and
// looked up by the lowercase hex SHA-256 digest (auth.Digest).
// Environment variable values are sealed with age to the store's own
// identity before they are written and opened again on read.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wscontext/lib/auth"
	"github.com/bureau-foundation/wscontext/lib/clock"
	"github.com/bureau-foundation/wscontext/lib/schema/workspace"
	"github.com/bureau-foundation/wscontext/lib/sealed"
	"github.com/bureau-foundation/wscontext/lib/sqlitepool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("userstore: not found")

// ErrInvalidDigest is returned by PutCredential for a digest that is
// not 64 lowercase hex characters.
var ErrInvalidDigest = errors.New("userstore: digest must be 64 lowercase hex characters")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	blocked    INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	kind       INTEGER NOT NULL,
	digest     TEXT NOT NULL,
	owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TEXT NOT NULL,
	PRIMARY KEY (kind, digest)
);

CREATE INDEX IF NOT EXISTS credentials_owner ON credentials(owner_id);

CREATE TABLE IF NOT EXISTS env_vars (
	owner_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name               TEXT NOT NULL,
	repository_pattern TEXT NOT NULL,
	value_sealed       TEXT NOT NULL,
	updated_at         TEXT NOT NULL,
	PRIMARY KEY (owner_id, name, repository_pattern)
);
`

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// PoolSize defaults to 4 when zero or negative.
	PoolSize int

	// Opener seals and opens environment variable values. Required.
	Opener *sealed.Opener

	// Clock stamps created_at and updated_at. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	opener *sealed.Opener
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens (creating if needed) the store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Opener == nil {
		return nil, fmt.Errorf("userstore: Opener is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("userstore: %w", err)
	}

	store := &Store{
		pool:   pool,
		opener: cfg.Opener,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}

	// Touch one connection so a bad path or schema fails at startup
	// rather than on the first request.
	if err := pool.WithConn(context.Background(), func(*sqlite.Conn) error { return nil }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("userstore: %w", err)
	}
	return store, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

var _ auth.CredentialStore = (*Store)(nil)

// FindCredentialOwner returns the id of the user holding the credential
// of kind whose digest matches. Credentials of blocked users do not
// match. Returns ErrNotFound when nothing matches.
func (s *Store) FindCredentialOwner(ctx context.Context, kind auth.CredentialKind, digest string) (string, error) {
	var owner string
	found := false
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT c.owner_id
			FROM credentials c
			JOIN users u ON u.id = c.owner_id
			WHERE c.kind = ? AND c.digest = ? AND u.blocked = 0`,
			&sqlitex.ExecOptions{
				Args: []any{int64(kind), digest},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					owner = stmt.ColumnText(0)
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return "", fmt.Errorf("userstore: finding %s credential: %w", kind, err)
	}
	if !found {
		return "", ErrNotFound
	}
	return owner, nil
}

// EnvVars returns the user's stored environment variables with their
// values opened, ordered by name then repository pattern. A user with
// no variables gets an empty slice.
func (s *Store) EnvVars(ctx context.Context, user auth.Identity) ([]workspace.UserEnvVar, error) {
	type sealedRow struct {
		name, pattern, ciphertext string
	}
	var rows []sealedRow
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT name, repository_pattern, value_sealed
			FROM env_vars
			WHERE owner_id = ?
			ORDER BY name, repository_pattern`,
			&sqlitex.ExecOptions{
				Args: []any{user.UserID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					rows = append(rows, sealedRow{
						name:       stmt.ColumnText(0),
						pattern:    stmt.ColumnText(1),
						ciphertext: stmt.ColumnText(2),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("userstore: listing env vars for %s: %w", user.UserID, err)
	}

	variables := make([]workspace.UserEnvVar, 0, len(rows))
	for _, row := range rows {
		value, err := s.open(row.ciphertext)
		if err != nil {
			return nil, fmt.Errorf("userstore: env var %s for %s: %w", row.name, user.UserID, err)
		}
		variables = append(variables, workspace.UserEnvVar{
			Name:              row.name,
			Value:             value,
			RepositoryPattern: row.pattern,
		})
	}
	return variables, nil
}

func (s *Store) open(ciphertext string) (string, error) {
	buffer, err := s.opener.Open(ciphertext)
	if err != nil {
		return "", err
	}
	if buffer == nil {
		return "", nil
	}
	defer buffer.Close()
	return buffer.String(), nil
}

// User is a row of the users table.
type User struct {
	ID      string
	Name    string
	Blocked bool
}

// PutUser creates the user or updates its name and blocked flag.
func (s *Store) PutUser(ctx context.Context, user User) error {
	if user.ID == "" {
		return fmt.Errorf("userstore: user id is required")
	}
	blocked := int64(0)
	if user.Blocked {
		blocked = 1
	}
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO users (id, name, blocked, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, blocked = excluded.blocked`,
			&sqlitex.ExecOptions{
				Args: []any{user.ID, user.Name, blocked, s.now()},
			})
	})
	if err != nil {
		return fmt.Errorf("userstore: putting user %s: %w", user.ID, err)
	}
	return nil
}

// PutCredential records a credential digest for ownerID. The owner
// must exist. Re-registering a digest moves it to the new owner.
func (s *Store) PutCredential(ctx context.Context, kind auth.CredentialKind, digest, ownerID string) error {
	if !isHexDigest(digest) {
		return ErrInvalidDigest
	}
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO credentials (kind, digest, owner_id, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(kind, digest) DO UPDATE SET owner_id = excluded.owner_id`,
			&sqlitex.ExecOptions{
				Args: []any{int64(kind), digest, ownerID, s.now()},
			})
	})
	if err != nil {
		return fmt.Errorf("userstore: putting %s credential for %s: %w", kind, ownerID, err)
	}
	s.logger.Info("credential registered",
		"kind", kind.String(),
		"owner", ownerID,
		"digest_prefix", auth.DigestPrefix(digest),
	)
	return nil
}

// PutEnvVar seals and stores an environment variable for ownerID,
// replacing any variable with the same name and repository pattern.
func (s *Store) PutEnvVar(ctx context.Context, ownerID string, variable workspace.UserEnvVar) error {
	if variable.Name == "" {
		return fmt.Errorf("userstore: env var name is required")
	}
	pattern := variable.RepositoryPattern
	if pattern == "" {
		pattern = "*/*"
	}

	ciphertext, err := sealed.Encrypt([]byte(variable.Value), []string{s.opener.Recipient()})
	if err != nil {
		return fmt.Errorf("userstore: sealing env var %s: %w", variable.Name, err)
	}

	err = s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO env_vars (owner_id, name, repository_pattern, value_sealed, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(owner_id, name, repository_pattern)
			DO UPDATE SET value_sealed = excluded.value_sealed, updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{
				Args: []any{ownerID, variable.Name, pattern, ciphertext, s.now()},
			})
	})
	if err != nil {
		return fmt.Errorf("userstore: putting env var %s for %s: %w", variable.Name, ownerID, err)
	}
	return nil
}

// DeleteEnvVar removes one variable. Returns ErrNotFound if there was
// none.
func (s *Store) DeleteEnvVar(ctx context.Context, ownerID, name, repositoryPattern string) error {
	var changes int
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			DELETE FROM env_vars
			WHERE owner_id = ? AND name = ? AND repository_pattern = ?`,
			&sqlitex.ExecOptions{
				Args: []any{ownerID, name, repositoryPattern},
			})
		changes = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("userstore: deleting env var %s for %s: %w", name, ownerID, err)
	}
	if changes == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}

func isHexDigest(digest string) bool {
	if len(digest) != 64 {
		return false
	}
	for _, character := range digest {
		if (character < '0' || character > '9') && (character < 'a' || character > 'f') {
			return false
		}
	}
	return true
}
