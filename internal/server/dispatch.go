package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/tornado80/sos-game-server/internal/db"
	"github.com/tornado80/sos-game-server/internal/game"
	"github.com/tornado80/sos-game-server/internal/protocol"
)

// timeLayout renders account timestamps on the wire.
const timeLayout = "2006-01-02 15:04:05.000000"

// errUnknownCommand travels to the client verbatim, like the db failure
// kinds.
var errUnknownCommand = errors.New("Unknown command.")

// handleConnection services one accepted socket: read exactly one
// packet, then either answer it and close, or hand the socket over to a
// game runner. The watcher goroutine unblocks the read when the serve
// context ends.
func handleConnection(ctx context.Context, srv *Server, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	remote := conn.RemoteAddr().String()

	p, err := protocol.ReadPacket(conn)
	if err != nil {
		// Malformed or empty first frames get no answer.
		slog.Debug("dropping unreadable first packet", "remote", remote, "error", err)
		conn.Close()
		return
	}

	switch {
	case srv.stopped.Load():
		reject(conn, p, "Server is stopped.")
	case srv.paused.Load():
		reject(conn, p, "Server is paused.")
	case p.Command() == protocol.CmdNewGameRequest:
		handleNewGame(ctx, srv, conn, remote, p)
	case p.Command() == protocol.CmdJoinGameRequest:
		handleJoinGame(ctx, srv, conn, remote, p)
	default:
		handleRPC(ctx, srv, conn, remote, p)
	}
}

// reject answers a request with its response command and an error
// string, then closes the socket.
func reject(conn net.Conn, p protocol.Packet, reason string) {
	resp := protocol.New(protocol.ResponseCommand(p.Command())).SetData("error", reason)
	if err := protocol.WritePacket(conn, resp); err != nil {
		slog.Debug("failed to write reject response", "command", p.Command(), "error", err)
	}
	conn.Close()
}

// handleRPC performs one persistence call, answers, and closes.
func handleRPC(ctx context.Context, srv *Server, conn net.Conn, remote string, p protocol.Packet) {
	defer conn.Close()

	resp, err := callStore(ctx, srv.store, p)
	if err != nil {
		if !db.IsClientError(err) && !errors.Is(err, errUnknownCommand) {
			slog.Error("storage failure", "command", p.Command(), "remote", remote, "error", err)
		}
		resp = protocol.New(protocol.ResponseCommand(p.Command())).SetData("error", clientMessage(err))
	}
	if err := protocol.WritePacket(conn, resp); err != nil {
		slog.Warn("failed to write response", "command", p.Command(), "remote", remote, "error", err)
	}
}

// callStore maps a short request onto its store call and builds the
// success response. A returned error replaces the response with an
// error payload in the caller.
func callStore(ctx context.Context, store Store, p protocol.Packet) (protocol.Packet, error) {
	resp := protocol.New(protocol.ResponseCommand(p.Command()))
	d := p.DataString

	switch p.Command() {
	case protocol.CmdLoginRequest:
		token, err := store.Authenticate(ctx, d("username"), d("password"))
		if err != nil {
			return resp, err
		}
		return resp.SetData("session_id", token), nil

	case protocol.CmdSignupRequest:
		return resp, store.Register(ctx, d("username"), d("password"), d("firstname"), d("lastname"), false)

	case protocol.CmdSignoutRequest:
		return resp, store.Invalidate(ctx, d("session_id"))

	case protocol.CmdGetAccountRequest:
		profile, err := store.GetAccount(ctx, d("session_id"))
		if err != nil {
			return resp, err
		}
		resp.SetData("username", profile.Username)
		resp.SetData("firstname", profile.FirstName)
		resp.SetData("lastname", profile.LastName)
		resp.SetData("rating", profile.Rating)
		resp.SetData("wins", profile.Wins)
		resp.SetData("games", profile.Games)
		resp.SetData("joined_at", profile.WhenJoined.Format(timeLayout))
		if profile.LastLogin != nil {
			resp.SetData("last_login", profile.LastLogin.Format(timeLayout))
		} else {
			resp.SetData("last_login", nil)
		}
		return resp, nil

	case protocol.CmdEditAccountRequest:
		return resp, store.EditAccount(ctx,
			d("session_id"), d("password"),
			d("new_username"), d("new_password"),
			d("new_firstname"), d("new_lastname"),
			p.DataBool("is_admin"))

	case protocol.CmdEditProfileRequest:
		return resp, store.EditProfile(ctx, d("session_id"), d("password"), d("firstname"), d("lastname"))

	case protocol.CmdEditUsernameRequest:
		return resp, store.ChangeUsername(ctx, d("session_id"), d("password"), d("new_username"))

	case protocol.CmdEditPasswordRequest:
		return resp, store.ChangePassword(ctx, d("session_id"), d("password"), d("new_password"))

	case protocol.CmdRemoveAccountRequest:
		return resp, store.RemoveAccount(ctx, d("session_id"), d("password"))
	}

	return resp, errUnknownCommand
}

// clientMessage maps an error to the string the client may see.
// Internal faults are flattened to a generic message.
func clientMessage(err error) string {
	if errors.Is(err, errUnknownCommand) || db.IsClientError(err) {
		return err.Error()
	}
	return "Internal storage error."
}

// handleNewGame creates the game row and its runner, then hands the
// socket over. The socket is closed only on failure.
func handleNewGame(ctx context.Context, srv *Server, conn net.Conn, remote string, p protocol.Packet) {
	gameID, accountID, err := srv.store.NewGame(ctx,
		p.DataString("session_id"),
		p.DataInt("board_size"),
		p.DataInt("player_count"),
		p.DataBool("is_public"),
		p.DataInt("max_hint"))
	if err != nil {
		upgradeFailed(conn, remote, p, err)
		return
	}

	info, err := srv.store.GameInformation(ctx, gameID)
	if err != nil {
		upgradeFailed(conn, remote, p, err)
		return
	}

	runner := game.NewRunner(ctx, gameID, info, srv.store)
	srv.registry.Start(runner)

	if !runner.Connect(accountID, conn, remote) {
		upgradeFailed(conn, remote, p, db.ErrWrongGameID)
		return
	}
	slog.Info("game created", "game_id", gameID, "account_id", accountID, "remote", remote)
}

// handleJoinGame seats the account in the game and hands the socket to
// the live runner. A game whose runner is gone, reclaimed or never
// started on this process, reads as a wrong game id to the client.
func handleJoinGame(ctx context.Context, srv *Server, conn net.Conn, remote string, p protocol.Packet) {
	gameID := int64(p.DataInt("game_id"))
	accountID, err := srv.store.JoinGame(ctx,
		p.DataString("session_id"),
		gameID,
		p.DataString("creator_username"))
	if err != nil {
		upgradeFailed(conn, remote, p, err)
		return
	}

	runner, ok := srv.registry.Lookup(gameID)
	if !ok {
		upgradeFailed(conn, remote, p, db.ErrWrongGameID)
		return
	}
	if !runner.Connect(accountID, conn, remote) {
		upgradeFailed(conn, remote, p, db.ErrWrongGameID)
		return
	}
	slog.Info("player joined game", "game_id", gameID, "account_id", accountID, "remote", remote)
}

// upgradeFailed answers a failed new_game/join_game and closes the
// socket.
func upgradeFailed(conn net.Conn, remote string, p protocol.Packet, err error) {
	if !db.IsClientError(err) {
		slog.Error("storage failure", "command", p.Command(), "remote", remote, "error", err)
	}
	reject(conn, p, clientMessage(err))
}
