package model

import "time"

// Game is one row of the games table. Winner stays nil until the game
// ends with a non-draw.
type Game struct {
	ID          int64
	Winner      *int64
	PlayerCount int
	BoardSize   int
	IsPublic    bool
	IsRunning   bool
	MaxHint     int
	WhenCreated time.Time
	WhoCreated  int64
}

// GameInfo is a game row joined with its creator, as handed to the runner.
type GameInfo struct {
	PlayerCount     int
	BoardSize       int
	CreatorID       int64
	CreatorUsername string
	MaxHint         int
}

// Player is the membership of an account in a game. Rows are never
// deleted; leaving only stamps WhenLeft.
type Player struct {
	ID         int64
	GameID     int64
	AccountID  int64
	WhenJoined time.Time
	HasLeft    bool
	WhenLeft   *time.Time
}

// GameLog is one accepted move. Row and Column are stored 1-based.
type GameLog struct {
	ID        int64
	LogNumber int
	Row       int
	Column    int
	Letter    string
	GameID    int64
	AccountID int64
	LoggedAt  time.Time
}

// GameHint is one served hint request. Row/Column 0 with an empty letter
// records that no hint was available.
type GameHint struct {
	ID         int64
	HintNumber int
	Row        int
	Column     int
	Letter     string
	GameID     int64
	AccountID  int64
	HintedAt   time.Time
}

// Action is one audit-trail row. Who is nil for system actions.
type Action struct {
	ID     int64
	Who    *int64
	At     time.Time
	Report string
}
