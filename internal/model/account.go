package model

import "time"

// Account is one row of the accounts table. The password column holds the
// lowercase hex SHA-512 digest, never the cleartext.
type Account struct {
	ID            int64
	Username      string
	Password      string
	FirstName     string
	LastName      string
	Rating        int
	Wins          int
	Games         int
	WhenJoined    time.Time
	WhenDeleted   *time.Time
	LastLogin     *time.Time
	IsPlayingGame bool
	IsAdmin       bool
	IsDisabled    bool
}

// Profile is the subset of an account a client may see about itself.
type Profile struct {
	Username   string
	FirstName  string
	LastName   string
	Rating     int
	Wins       int
	Games      int
	WhenJoined time.Time
	LastLogin  *time.Time
}

// Session binds an opaque token to an account.
type Session struct {
	ID          int64
	Token       string
	WhenCreated time.Time
	AccountID   int64
}
