// Package db is the persistence gateway: accounts, sessions, games,
// players, move logs, hints and the audit trail, all behind one Store.
//
// Every mutating operation serializes on a process-wide mutex and commits
// before returning. Failure kinds the client is allowed to see are the
// sentinel errors in errors.go; everything else is an internal storage
// fault wrapped with context.
package db

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool. The mutex is held around mutating
// operations only; reads go straight to the pool.
type Store struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

// New connects to PostgreSQL and returns a Store handle.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// HashPassword digests a password the way every stored credential is
// written: SHA-512 over the UTF-8 bytes, lowercase hex.
func HashPassword(password string) string {
	sum := sha512.Sum512([]byte(password))
	return hex.EncodeToString(sum[:])
}

// digestsEqual compares two password digests in constant time.
func digestsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
