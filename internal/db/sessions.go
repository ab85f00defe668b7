package db

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// sessionTokenBytes is the entropy behind one opaque session token. The
// encoded form stays above the 50-character floor of the wire contract.
const sessionTokenBytes = 50

// newSessionToken returns a fresh URL-safe token.
func newSessionToken() (string, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Authenticate verifies the credentials and opens a fresh session.
// Unknown usernames, wrong passwords and disabled accounts are rejected
// with the same indistinguishable ErrWrongUsernamePassword. Success
// stamps last_login and returns the new session token.
func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.accountIDByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if accountID == -1 {
		return "", ErrWrongUsernamePassword
	}

	var digest string
	var disabled bool
	err = s.pool.QueryRow(ctx,
		`SELECT password, is_disabled FROM accounts WHERE account_id = $1`, accountID,
	).Scan(&digest, &disabled)
	if err != nil {
		return "", fmt.Errorf("querying credentials for account %d: %w", accountID, err)
	}
	if !digestsEqual(digest, HashPassword(password)) || disabled {
		return "", ErrWrongUsernamePassword
	}

	token, err := newSessionToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin login transaction: %w", err)
	}
	defer rollback(ctx, tx, "login")

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET last_login = $1 WHERE account_id = $2`, now, accountID,
	); err != nil {
		return "", fmt.Errorf("updating last login for account %d: %w", accountID, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (token, when_created, account_id) VALUES ($1, $2, $3)`,
		token, now, accountID,
	); err != nil {
		return "", fmt.Errorf("inserting session for account %d: %w", accountID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit login transaction: %w", err)
	}
	return token, nil
}

// Invalidate deletes the session behind token. An unknown token reports
// ErrInvalidSessionToken.
func (s *Store) Invalidate(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE account_id = $1 AND token = $2`, accountID, token,
	); err != nil {
		return fmt.Errorf("deleting session for account %d: %w", accountID, err)
	}
	return nil
}

// Resolve maps a session token to its account id without mutating
// anything. Zero or more than one matching row both yield -1.
func (s *Store) Resolve(ctx context.Context, token string) (int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id FROM sessions WHERE token = $1`, token)
	if err != nil {
		return -1, fmt.Errorf("querying session: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 1)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return -1, fmt.Errorf("scanning session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return -1, fmt.Errorf("reading sessions: %w", err)
	}
	if len(ids) != 1 {
		return -1, nil
	}
	return ids[0], nil
}

// requireSession resolves token or reports ErrInvalidSessionToken.
func (s *Store) requireSession(ctx context.Context, token string) (int64, error) {
	accountID, err := s.Resolve(ctx, token)
	if err != nil {
		return -1, err
	}
	if accountID == -1 {
		return -1, ErrInvalidSessionToken
	}
	return accountID, nil
}

// purgeSessionsTx removes every session of an account inside tx. Username
// and password changes and soft deletion all end the account's sessions.
func purgeSessionsTx(ctx context.Context, tx pgx.Tx, accountID int64) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM sessions WHERE account_id = $1`, accountID,
	); err != nil {
		return fmt.Errorf("purging sessions for account %d: %w", accountID, err)
	}
	return nil
}

// rollback releases tx unless it was already committed.
func rollback(ctx context.Context, tx pgx.Tx, op string) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("rollback failed", "op", op, "err", err)
	}
}
