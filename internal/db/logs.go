package db

import (
	"context"
	"fmt"
	"time"
)

// AddGameLog appends one accepted move. Coordinates arrive 0-based from
// the runner and are stored 1-based; log numbers are dense per game,
// starting at 1.
func (s *Store) AddGameLog(ctx context.Context, gameID, accountID int64, letter string, row, column int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM game_logs WHERE game_id = $1`, gameID,
	).Scan(&count); err != nil {
		return fmt.Errorf("counting logs for game %d: %w", gameID, err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO game_logs (log_number, row_number, column_number, letter, game_id, account_id, log_datetime)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		count+1, row+1, column+1, letter, gameID, accountID, time.Now(),
	); err != nil {
		return fmt.Errorf("logging move for game %d: %w", gameID, err)
	}
	return nil
}

// AddGameHint appends one served hint request, numbered like game logs.
// A request that found no playable cell arrives as (-1, -1) with an
// empty letter and lands in the table as row 0, column 0, letter ''.
func (s *Store) AddGameHint(ctx context.Context, gameID, accountID int64, letter string, row, column int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM game_hints WHERE game_id = $1`, gameID,
	).Scan(&count); err != nil {
		return fmt.Errorf("counting hints for game %d: %w", gameID, err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO game_hints (hint_number, row_number, column_number, letter, game_id, account_id, hint_datetime)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		count+1, row+1, column+1, letter, gameID, accountID, time.Now(),
	); err != nil {
		return fmt.Errorf("recording hint for game %d: %w", gameID, err)
	}
	return nil
}

// AddAction appends one audit-trail row. A nil actorID records a system
// action.
func (s *Store) AddAction(ctx context.Context, actorID *int64, report string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO actions (who, action_datetime, report) VALUES ($1, $2, $3)`,
		actorID, time.Now(), report,
	); err != nil {
		return fmt.Errorf("recording action: %w", err)
	}
	return nil
}
