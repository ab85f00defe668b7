package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tornado80/sos-game-server/internal/model"
)

// accountIDByUsername returns the account id owning username, or -1.
// Soft-deleted accounts keep their sentinel usernames and are found too.
func (s *Store) accountIDByUsername(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT account_id FROM accounts WHERE username = $1`, username,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("querying account %q: %w", username, err)
	}
	return id, nil
}

// checkPassword compares the supplied cleartext against the stored digest.
func (s *Store) checkPassword(ctx context.Context, accountID int64, password string) (bool, error) {
	var digest string
	err := s.pool.QueryRow(ctx,
		`SELECT password FROM accounts WHERE account_id = $1`, accountID,
	).Scan(&digest)
	if err != nil {
		return false, fmt.Errorf("querying password for account %d: %w", accountID, err)
	}
	return digestsEqual(digest, HashPassword(password)), nil
}

// Register creates a new account. A username already owned by any row,
// live or soft-deleted, reports ErrExistingUsername.
func (s *Store) Register(ctx context.Context, username, password, firstName, lastName string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.accountIDByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != -1 {
		return ErrExistingUsername
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (username, password, first_name, last_name, when_joined, is_admin)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		username, HashPassword(password), firstName, lastName, time.Now(), isAdmin,
	); err != nil {
		return fmt.Errorf("creating account %q: %w", username, err)
	}
	return nil
}

// ChangePassword replaces the account's password and ends every session
// the account holds.
func (s *Store) ChangePassword(ctx context.Context, token, currentPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return err
	}
	ok, err := s.checkPassword(ctx, accountID, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongCurrentPassword
	}
	if currentPassword == newPassword {
		return ErrRepeatedPassword
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin password change: %w", err)
	}
	defer rollback(ctx, tx, "change password")

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET password = $1 WHERE account_id = $2`,
		HashPassword(newPassword), accountID,
	); err != nil {
		return fmt.Errorf("updating password for account %d: %w", accountID, err)
	}
	if err := purgeSessionsTx(ctx, tx, accountID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit password change: %w", err)
	}
	return nil
}

// ChangeUsername renames the account and ends every session it holds.
// Renaming to the name the account already has succeeds; a name held by
// another row reports ErrExistingUsername.
func (s *Store) ChangeUsername(ctx context.Context, token, currentPassword, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return err
	}
	ok, err := s.checkPassword(ctx, accountID, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongCurrentPassword
	}
	holder, err := s.accountIDByUsername(ctx, username)
	if err != nil {
		return err
	}
	if holder != -1 && holder != accountID {
		return ErrExistingUsername
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin username change: %w", err)
	}
	defer rollback(ctx, tx, "change username")

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET username = $1 WHERE account_id = $2`, username, accountID,
	); err != nil {
		return fmt.Errorf("updating username for account %d: %w", accountID, err)
	}
	if err := purgeSessionsTx(ctx, tx, accountID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit username change: %w", err)
	}
	return nil
}

// EditProfile updates first and last name. Sessions survive.
func (s *Store) EditProfile(ctx context.Context, token, currentPassword, firstName, lastName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return err
	}
	ok, err := s.checkPassword(ctx, accountID, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongCurrentPassword
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE accounts SET first_name = $1, last_name = $2 WHERE account_id = $3`,
		firstName, lastName, accountID,
	); err != nil {
		return fmt.Errorf("updating profile for account %d: %w", accountID, err)
	}
	return nil
}

// EditAccount rewrites username, password, names and the admin flag in
// one shot. Unlike ChangePassword and ChangeUsername it leaves the
// account's sessions alive.
func (s *Store) EditAccount(ctx context.Context, token, currentPassword, username, password, firstName, lastName string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return err
	}
	ok, err := s.checkPassword(ctx, accountID, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongCurrentPassword
	}
	holder, err := s.accountIDByUsername(ctx, username)
	if err != nil {
		return err
	}
	if holder != -1 && holder != accountID {
		return ErrExistingUsername
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET username = $1, password = $2, first_name = $3, last_name = $4, is_admin = $5
		 WHERE account_id = $6`,
		username, HashPassword(password), firstName, lastName, isAdmin, accountID,
	); err != nil {
		return fmt.Errorf("updating account %d: %w", accountID, err)
	}
	return nil
}

// RemoveAccount soft-deletes the account: the row survives with sentinel
// username and password, the disabled flag set and the deletion time
// stamped. All sessions end.
func (s *Store) RemoveAccount(ctx context.Context, token, currentPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return err
	}
	ok, err := s.checkPassword(ctx, accountID, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongCurrentPassword
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin account removal: %w", err)
	}
	defer rollback(ctx, tx, "remove account")

	if _, err := tx.Exec(ctx,
		`UPDATE accounts
		 SET username = $1, password = $2, first_name = 'DELETED', last_name = 'ACCOUNT',
		     is_disabled = true, when_deleted = $3
		 WHERE account_id = $4`,
		fmt.Sprintf("DELETED_ACCOUNT_%d", accountID),
		fmt.Sprintf("DELETED_ACCOUNT_PASSWORD_%d", accountID),
		time.Now(), accountID,
	); err != nil {
		return fmt.Errorf("soft-deleting account %d: %w", accountID, err)
	}
	if err := purgeSessionsTx(ctx, tx, accountID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account removal: %w", err)
	}
	return nil
}

// GetAccount returns the profile behind a live session.
func (s *Store) GetAccount(ctx context.Context, token string) (model.Profile, error) {
	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return model.Profile{}, err
	}

	var p model.Profile
	err = s.pool.QueryRow(ctx,
		`SELECT username, first_name, last_name, rating, number_of_wins, number_of_games,
		        when_joined, last_login
		 FROM accounts WHERE account_id = $1`, accountID,
	).Scan(&p.Username, &p.FirstName, &p.LastName, &p.Rating, &p.Wins, &p.Games,
		&p.WhenJoined, &p.LastLogin)
	if err != nil {
		return model.Profile{}, fmt.Errorf("querying profile for account %d: %w", accountID, err)
	}
	return p, nil
}

// UsernameFromAccountID returns the username behind id, or "" when the
// account does not exist.
func (s *Store) UsernameFromAccountID(ctx context.Context, accountID int64) (string, error) {
	var username string
	err := s.pool.QueryRow(ctx,
		`SELECT username FROM accounts WHERE account_id = $1`, accountID,
	).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying username for account %d: %w", accountID, err)
	}
	return username, nil
}

// UpdateAccountGamesAndWins shifts the games and wins counters.
func (s *Store) UpdateAccountGamesAndWins(ctx context.Context, accountID int64, gamesDelta, winsDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET number_of_games = number_of_games + $1, number_of_wins = number_of_wins + $2
		 WHERE account_id = $3`,
		gamesDelta, winsDelta, accountID,
	); err != nil {
		return fmt.Errorf("updating games and wins for account %d: %w", accountID, err)
	}
	return nil
}
