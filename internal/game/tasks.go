package game

import "net"

// task is one unit of work for a runner. Producers are the dispatcher
// (connection handovers) and the per-socket listeners (everything else).
type task interface {
	isTask()
}

// connectTask hands a freshly upgraded socket to the runner.
type connectTask struct {
	accountID int64
	conn      net.Conn
	addr      string
}

// disconnectTask reports that a player asked to leave or that its socket
// died.
type disconnectTask struct {
	accountID int64
}

// moveTask carries one claimed move, zero-based.
type moveTask struct {
	accountID int64
	row, col  int
	letter    string
}

// hintTask asks for help with the current turn.
type hintTask struct {
	accountID int64
}

func (connectTask) isTask()    {}
func (disconnectTask) isTask() {}
func (moveTask) isTask()       {}
func (hintTask) isTask()       {}
