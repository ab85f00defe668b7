package game

import (
	"net"

	"github.com/tornado80/sos-game-server/internal/protocol"
)

// listen reads packets from one player socket and converts them into
// tasks. It never writes to the socket. Any read error counts as a
// disconnect, so a severed connection and a voluntary leave look the same
// to the runner.
func (r *Runner) listen(accountID int64, conn net.Conn) {
	for {
		p, err := protocol.ReadPacket(conn)
		if err != nil {
			r.enqueue(disconnectTask{accountID: accountID})
			return
		}
		switch p.Command() {
		case protocol.CmdMyTurn:
			r.enqueue(moveTask{
				accountID: accountID,
				row:       p.DataInt("row"),
				col:       p.DataInt("column"),
				letter:    p.DataString("letter"),
			})
		case protocol.CmdHint:
			r.enqueue(hintTask{accountID: accountID})
		case protocol.CmdDisconnect:
			r.enqueue(disconnectTask{accountID: accountID})
			return
		default:
			r.log.Warn("dropping unknown in-game command",
				"account_id", accountID, "command", p.Command())
		}
	}
}

// enqueue delivers a task unless the runner has already exited.
func (r *Runner) enqueue(t task) {
	select {
	case r.tasks <- t:
	case <-r.done:
	}
}
