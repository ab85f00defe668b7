package game

import (
	"github.com/tornado80/sos-game-server/internal/protocol"
)

// send writes one packet to a single player if it is connected. Write
// errors are logged and otherwise ignored; the listener notices a dead
// socket on its next read and files the disconnect.
func (r *Runner) send(accountID int64, p protocol.Packet) {
	conn := r.conns[accountID]
	if conn == nil {
		return
	}
	if err := protocol.WritePacket(conn, p); err != nil {
		r.log.Warn("writing to player failed", "account_id", accountID, "err", err)
	}
}

// broadcast writes one packet to every connected player.
func (r *Runner) broadcast(p protocol.Packet) {
	for id, conn := range r.conns {
		if conn == nil {
			continue
		}
		if err := protocol.WritePacket(conn, p); err != nil {
			r.log.Warn("writing to player failed", "account_id", id, "err", err)
		}
	}
}

// broadcastPlayers sends score, hint count, color and presence keyed by
// username.
func (r *Runner) broadcastPlayers() {
	players := make(map[string]any, len(r.roster))
	for _, id := range r.roster {
		players[r.names[id]] = map[string]any{
			"score":  r.scores[id],
			"hints":  r.hints[id],
			"color":  r.colors[id],
			"online": r.conns[id] != nil,
		}
	}
	r.broadcast(protocol.New(protocol.CmdPlayersStatus).SetData("players", players))
}

// broadcastBoard sends the rendered board, one [color, letter] pair per
// cell. Empty cells render as two empty strings.
func (r *Runner) broadcastBoard() {
	rows := make([]any, r.size)
	for i := range r.size {
		row := make([]any, r.size)
		for j := range r.size {
			if r.board.Empty(i, j) {
				row[j] = []any{"", ""}
				continue
			}
			row[j] = []any{r.colors[r.board.Owner(i, j)], r.board.Letter(i, j)}
		}
		rows[i] = row
	}
	r.broadcast(protocol.New(protocol.CmdBoardStatus).SetData("board", rows))
}
