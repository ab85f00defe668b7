package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tornado80/sos-game-server/internal/model"
)

// NewGame creates a game and its creator's players row in one
// transaction, returning the new game id and the creator's account id.
func (s *Store) NewGame(ctx context.Context, token string, boardSize, playerCount int, isPublic bool, maxHint int) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin game creation: %w", err)
	}
	defer rollback(ctx, tx, "new game")

	var gameID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO games (player_count, is_public, board_size, when_created, who_created, max_hint)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING game_id`,
		playerCount, isPublic, boardSize, now, accountID, maxHint,
	).Scan(&gameID)
	if err != nil {
		return 0, 0, fmt.Errorf("creating game: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO players (game_id, account_id, when_joined) VALUES ($1, $2, $3)`,
		gameID, accountID, now,
	); err != nil {
		return 0, 0, fmt.Errorf("adding creator to game %d: %w", gameID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit game creation: %w", err)
	}
	return gameID, accountID, nil
}

// JoinGame puts the session's account on the roster of a running game.
// An unknown or finished game and a creator-username mismatch are the
// same indistinguishable ErrWrongGameID. Joining a roster the account is
// already on succeeds without inserting a second row; a full roster
// reports ErrGameNewPlayerBanned.
func (s *Store) JoinGame(ctx context.Context, token string, gameID int64, creatorUsername string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, err := s.requireSession(ctx, token)
	if err != nil {
		return -1, err
	}

	var playerCount int
	var creator string
	err = s.pool.QueryRow(ctx,
		`SELECT g.player_count, a.username
		 FROM games g JOIN accounts a ON a.account_id = g.who_created
		 WHERE g.game_id = $1 AND g.is_running`, gameID,
	).Scan(&playerCount, &creator)
	if errors.Is(err, pgx.ErrNoRows) {
		return -1, ErrWrongGameID
	}
	if err != nil {
		return -1, fmt.Errorf("querying game %d: %w", gameID, err)
	}
	if creator != creatorUsername {
		return -1, ErrWrongGameID
	}

	rows, err := s.pool.Query(ctx,
		`SELECT account_id FROM players WHERE game_id = $1`, gameID)
	if err != nil {
		return -1, fmt.Errorf("querying roster of game %d: %w", gameID, err)
	}
	defer rows.Close()

	roster := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return -1, fmt.Errorf("scanning roster of game %d: %w", gameID, err)
		}
		if id == accountID {
			return accountID, nil
		}
		roster++
	}
	if err := rows.Err(); err != nil {
		return -1, fmt.Errorf("reading roster of game %d: %w", gameID, err)
	}
	if roster == playerCount {
		return -1, ErrGameNewPlayerBanned
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO players (game_id, account_id, when_joined) VALUES ($1, $2, $3)`,
		gameID, accountID, time.Now(),
	); err != nil {
		return -1, fmt.Errorf("adding account %d to game %d: %w", accountID, gameID, err)
	}
	return accountID, nil
}

// GameInformation loads the parameters handed to a game runner.
func (s *Store) GameInformation(ctx context.Context, gameID int64) (model.GameInfo, error) {
	var info model.GameInfo
	err := s.pool.QueryRow(ctx,
		`SELECT g.player_count, g.board_size, g.who_created, a.username, g.max_hint
		 FROM games g JOIN accounts a ON a.account_id = g.who_created
		 WHERE g.game_id = $1`, gameID,
	).Scan(&info.PlayerCount, &info.BoardSize, &info.CreatorID, &info.CreatorUsername, &info.MaxHint)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GameInfo{}, ErrGameNotFound
	}
	if err != nil {
		return model.GameInfo{}, fmt.Errorf("querying game %d: %w", gameID, err)
	}
	return info, nil
}

// SetGameEnded stops the game. A positive winnerID records the winner;
// zero records a draw or an abandoned game.
func (s *Store) SetGameEnded(ctx context.Context, gameID, winnerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if winnerID > 0 {
		_, err = s.pool.Exec(ctx,
			`UPDATE games SET is_running = false, winner = $1 WHERE game_id = $2`,
			winnerID, gameID)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE games SET is_running = false WHERE game_id = $1`, gameID)
	}
	if err != nil {
		return fmt.Errorf("ending game %d: %w", gameID, err)
	}
	return nil
}
