package protocol

import "strings"

// Requests answered by the dispatcher with a single response frame.
const (
	CmdLoginRequest         = "login_request"
	CmdSignupRequest        = "signup_request"
	CmdSignoutRequest       = "signout_request"
	CmdGetAccountRequest    = "get_account_request"
	CmdEditAccountRequest   = "edit_account_request"
	CmdEditProfileRequest   = "edit_profile_request"
	CmdEditUsernameRequest  = "edit_username_request"
	CmdEditPasswordRequest  = "edit_password_request"
	CmdRemoveAccountRequest = "remove_account_request"
)

// Requests that upgrade the connection into a live game on success.
const (
	CmdNewGameRequest  = "new_game_request"
	CmdJoinGameRequest = "join_game_request"
)

// Runner to client.
const (
	CmdGameDetails     = "game_runner_game_details"
	CmdPlayersStatus   = "game_runner_players_status"
	CmdBoardStatus     = "game_runner_board_status"
	CmdYourTurn        = "game_runner_your_turn"
	CmdHintResult      = "game_runner_hint_result"
	CmdWinnerAnnounced = "game_runner_winner_announced"
	CmdNewPlayerBanned = "game_runner_new_player_banned"
	CmdAbort           = "game_runner_abort"
)

// Client to runner on a live game connection.
const (
	CmdMyTurn     = "game_runner_my_turn"
	CmdHint       = "game_runner_hint"
	CmdDisconnect = "game_runner_disconnect"
)

// ResponseCommand derives the reply command for a request by substring
// replacement, so unknown commands still get a well-formed reply.
func ResponseCommand(request string) string {
	return strings.ReplaceAll(request, "request", "response")
}
