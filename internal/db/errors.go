package db

import "errors"

// Failure kinds whose text travels to the client verbatim. The exact
// strings are part of the wire contract, capitalization included.
var (
	ErrWrongUsernamePassword = errors.New("Username or password is wrong.")
	ErrWrongCurrentPassword  = errors.New("Current password is wrong. Operation aborted.")
	ErrInvalidSessionToken   = errors.New("Session token is not valid.")
	ErrExistingUsername      = errors.New("This username exists already.")
	ErrRepeatedPassword      = errors.New("New password is the same as old password. Operation aborted.")
	ErrWrongGameID           = errors.New("Game ID or username is not valid.")
	ErrGameNotFound          = errors.New("Game ID is not valid.")
	ErrGameNewPlayerBanned   = errors.New("This game does not accept new players anymore.")
)

var clientErrors = []error{
	ErrWrongUsernamePassword,
	ErrWrongCurrentPassword,
	ErrInvalidSessionToken,
	ErrExistingUsername,
	ErrRepeatedPassword,
	ErrWrongGameID,
	ErrGameNotFound,
	ErrGameNewPlayerBanned,
}

// IsClientError reports whether err is a failure kind meant for the
// client rather than an internal storage fault.
func IsClientError(err error) bool {
	for _, kind := range clientErrors {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
