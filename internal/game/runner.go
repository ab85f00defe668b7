// Package game hosts the live games. Each game is owned by exactly one
// Runner goroutine that consumes a task mailbox; per-socket listener
// goroutines and the dispatcher only produce tasks. All socket writes
// happen on the runner goroutine, so every client sees a coherent frame
// stream without per-socket locking.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/tornado80/sos-game-server/internal/model"
	"github.com/tornado80/sos-game-server/internal/protocol"
)

// Store is the slice of persistence a runner needs.
type Store interface {
	AddGameLog(ctx context.Context, gameID, accountID int64, letter string, row, column int) error
	AddGameHint(ctx context.Context, gameID, accountID int64, letter string, row, column int) error
	SetGameEnded(ctx context.Context, gameID, winnerID int64) error
	UpdateAccountGamesAndWins(ctx context.Context, accountID int64, gamesDelta, winsDelta int) error
	UsernameFromAccountID(ctx context.Context, accountID int64) (string, error)
}

const (
	mailboxSize = 64

	// idleTimeout is how long an empty unfinished game lingers before the
	// runner reclaims it as a draw.
	idleTimeout = 30 * time.Second
)

// Runner drives one game. Only the runner goroutine touches the board, the
// roster or any player socket for writing.
type Runner struct {
	gameID   int64
	size     int
	capacity int
	maxHint  int
	creator  string

	ctx   context.Context
	store Store
	log   *slog.Logger

	tasks chan task
	done  chan struct{}

	board        *Board
	roster       []int64
	conns        map[int64]net.Conn
	names        map[int64]string
	scores       map[int64]int
	hints        map[int64]int
	colors       map[int64]string
	order        []int64
	turn         int
	occupied     int
	online       int
	lastActivity time.Time
	hasWinner    bool

	reclaimAfter time.Duration
	shuffle      func([]int64)
}

// NewRunner builds the runner for one game. Registry.Start launches it.
func NewRunner(ctx context.Context, gameID int64, info model.GameInfo, store Store) *Runner {
	return &Runner{
		gameID:       gameID,
		size:         info.BoardSize,
		capacity:     info.PlayerCount,
		maxHint:      info.MaxHint,
		creator:      info.CreatorUsername,
		ctx:          ctx,
		store:        store,
		log:          slog.With("game_id", gameID),
		tasks:        make(chan task, mailboxSize),
		done:         make(chan struct{}),
		board:        NewBoard(info.BoardSize),
		conns:        make(map[int64]net.Conn),
		names:        make(map[int64]string),
		scores:       make(map[int64]int),
		hints:        make(map[int64]int),
		colors:       make(map[int64]string),
		turn:         -1,
		lastActivity: time.Now(),
		reclaimAfter: idleTimeout,
		shuffle: func(order []int64) {
			rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		},
	}
}

// GameID returns the id of the game this runner owns.
func (r *Runner) GameID() int64 { return r.gameID }

// Done is closed once the runner has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Connect hands an upgraded socket to the runner. It reports false when
// the runner has already exited; the socket then stays with the caller.
func (r *Runner) Connect(accountID int64, conn net.Conn, addr string) bool {
	select {
	case r.tasks <- connectTask{accountID: accountID, conn: conn, addr: addr}:
		return true
	case <-r.done:
		return false
	}
}

// run is the single-consumer event loop. With players online it blocks on
// the mailbox; once the game is empty it additionally watches the idle
// deadline and reclaims the game as a draw when that passes first.
func (r *Runner) run() {
	r.log.Info("game runner started", "board_size", r.size, "player_count", r.capacity)
	defer r.drain()
	defer close(r.done)

	for {
		if r.online > 0 {
			select {
			case t := <-r.tasks:
				r.handle(t)
			case <-r.ctx.Done():
				r.abortAll()
				return
			}
			continue
		}

		// Pending tasks beat the idle bookkeeping.
		select {
		case t := <-r.tasks:
			r.handle(t)
			continue
		default:
		}

		if r.hasWinner {
			r.log.Info("game runner exiting", "reason", "game over")
			return
		}
		remaining := r.reclaimAfter - time.Since(r.lastActivity)
		if remaining <= 0 {
			r.log.Info("game runner exiting", "reason", "idle")
			r.endGame(0)
			return
		}
		idle := time.NewTimer(remaining)
		select {
		case t := <-r.tasks:
			idle.Stop()
			r.handle(t)
		case <-idle.C:
		case <-r.ctx.Done():
			idle.Stop()
			return
		}
	}
}

func (r *Runner) handle(t task) {
	switch t := t.(type) {
	case connectTask:
		r.handleConnect(t)
	case disconnectTask:
		r.handleDisconnect(t)
	case moveTask:
		r.handleMove(t)
	case hintTask:
		r.handleHint(t)
	}
}

func (r *Runner) handleConnect(t connectTask) {
	if r.hasWinner {
		r.refuse(t.conn, "This game does not accept new players anymore.")
		return
	}
	if r.conns[t.accountID] != nil {
		r.refuse(t.conn, "Another session of yours is active in this game.")
		return
	}

	if _, seated := r.scores[t.accountID]; !seated {
		r.roster = append(r.roster, t.accountID)
		r.scores[t.accountID] = 0
		r.hints[t.accountID] = 0
		r.colors[t.accountID] = playerColor(len(r.roster) - 1)
	}
	if r.names[t.accountID] == "" {
		name, err := r.store.UsernameFromAccountID(r.ctx, t.accountID)
		if err != nil || name == "" {
			r.log.Error("resolving username failed", "account_id", t.accountID, "err", err)
			name = strconv.FormatInt(t.accountID, 10)
		}
		r.names[t.accountID] = name
	}

	r.conns[t.accountID] = t.conn
	r.online++
	go r.listen(t.accountID, t.conn)
	r.log.Info("player connected",
		"account_id", t.accountID, "username", r.names[t.accountID], "addr", t.addr)

	r.send(t.accountID, protocol.New(protocol.CmdGameDetails).
		SetData("game_id", r.gameID).
		SetData("board_size", r.size).
		SetData("player_count", r.capacity).
		SetData("creator_username", r.creator).
		SetData("color", r.colors[t.accountID]).
		SetData("max_hint", r.maxHint))
	r.broadcastPlayers()
	r.broadcastBoard()

	switch {
	case r.turn >= 0 && r.order[r.turn] == t.accountID:
		r.send(t.accountID, protocol.New(protocol.CmdYourTurn))
	case r.turn < 0 && len(r.roster) == r.capacity:
		r.startGame()
	}
}

// startGame fixes a random turn order and gives the first player the turn.
func (r *Runner) startGame() {
	r.order = append([]int64(nil), r.roster...)
	r.shuffle(r.order)
	r.turn = 0
	r.log.Info("game started", "players", len(r.order))
	r.send(r.order[0], protocol.New(protocol.CmdYourTurn))
}

func (r *Runner) handleDisconnect(t disconnectTask) {
	conn := r.conns[t.accountID]
	if conn == nil {
		return
	}
	_ = protocol.WritePacket(conn, protocol.New(protocol.CmdAbort))
	_ = conn.Close()
	r.conns[t.accountID] = nil
	r.broadcastPlayers()
	r.online--
	if r.online == 0 {
		r.lastActivity = time.Now()
	}
	r.log.Info("player disconnected", "account_id", t.accountID, "online", r.online)
}

func (r *Runner) handleMove(t moveTask) {
	if r.hasWinner || r.turn < 0 || r.order[r.turn] != t.accountID {
		return
	}
	if t.row < 0 || t.row >= r.size || t.col < 0 || t.col >= r.size ||
		(t.letter != "S" && t.letter != "O") || !r.board.Empty(t.row, t.col) {
		r.log.Warn("discarding invalid move",
			"account_id", t.accountID, "row", t.row, "col", t.col, "letter", t.letter)
		return
	}

	r.board.Place(t.row, t.col, t.letter, t.accountID)
	r.occupied++
	if err := r.store.AddGameLog(r.ctx, r.gameID, t.accountID, t.letter, t.row, t.col); err != nil {
		r.log.Error("recording move failed", "err", err)
	}

	scored, cells := r.board.Triples(t.row, t.col, t.letter)
	if scored > 0 {
		// A scoring move claims the involved cells and keeps the turn.
		r.scores[t.accountID] += scored
		for _, p := range cells {
			r.board.Claim(p.Row, p.Col, t.accountID)
		}
	} else {
		r.turn = (r.turn + 1) % len(r.order)
	}

	r.broadcastPlayers()
	r.broadcastBoard()

	if r.occupied == r.size*r.size {
		r.announceWinner()
		return
	}
	r.send(r.order[r.turn], protocol.New(protocol.CmdYourTurn))
}

func (r *Runner) handleHint(t hintTask) {
	if r.hasWinner || r.turn < 0 || r.order[r.turn] != t.accountID {
		return
	}
	// maxHint 0 disables hints for the whole game.
	if r.maxHint <= 0 || r.hints[t.accountID] >= r.maxHint {
		return
	}

	r.hints[t.accountID]++
	finished := r.hints[t.accountID] == r.maxHint

	resp := protocol.New(protocol.CmdHintResult)
	row, col, letter, ok := r.board.FindGoodPlace()
	if ok {
		resp.Set("result", fmt.Sprintf("You can put letter %s on cell (%d, %d).", letter, row+1, col+1))
	} else {
		resp.Set("error", "There is no good place left on the board.")
		row, col, letter = -1, -1, ""
	}
	if finished {
		resp.Set("finished", true)
	}

	// Help costs one point, but the score never goes below zero.
	if r.scores[t.accountID] > 0 {
		r.scores[t.accountID]--
	}
	if err := r.store.AddGameHint(r.ctx, r.gameID, t.accountID, letter, row, col); err != nil {
		r.log.Error("recording hint failed", "err", err)
	}
	r.send(t.accountID, resp)
	r.broadcastPlayers()
}

// announceWinner ranks the roster, persists the outcome and tells every
// live socket. The top score wins; a tie between the two best is a draw.
// Every roster member gets a played game either way.
func (r *Runner) announceWinner() {
	ranked := append([]int64(nil), r.roster...)
	sort.Slice(ranked, func(i, j int) bool { return r.scores[ranked[i]] > r.scores[ranked[j]] })

	p := protocol.New(protocol.CmdWinnerAnnounced)
	var winner int64
	if len(ranked) < 2 || r.scores[ranked[0]] > r.scores[ranked[1]] {
		winner = ranked[0]
		p.Set("winner", r.names[winner])
		r.log.Info("game won", "winner", r.names[winner], "score", r.scores[winner])
	} else {
		p.Set("draw", true)
		r.log.Info("game drawn", "score", r.scores[ranked[0]])
	}
	r.endGame(winner)
	for _, id := range r.roster {
		wins := 0
		if winner != 0 && id == winner {
			wins = 1
		}
		if err := r.store.UpdateAccountGamesAndWins(r.ctx, id, 1, wins); err != nil {
			r.log.Error("updating account counters failed", "account_id", id, "err", err)
		}
	}
	r.broadcast(p)
	r.hasWinner = true
}

// endGame marks the game finished. winnerID 0 records a draw.
func (r *Runner) endGame(winnerID int64) {
	if err := r.store.SetGameEnded(r.ctx, r.gameID, winnerID); err != nil {
		r.log.Error("ending game failed", "err", err)
	}
}

// refuse answers a doomed socket with a ban notice and closes it.
func (r *Runner) refuse(conn net.Conn, reason string) {
	p := protocol.New(protocol.CmdNewPlayerBanned).SetData("error", reason)
	if err := protocol.WritePacket(conn, p); err != nil {
		r.log.Warn("writing ban notice failed", "err", err)
	}
	_ = conn.Close()
}

// abortAll closes every live socket after telling it the game is gone.
func (r *Runner) abortAll() {
	p := protocol.New(protocol.CmdAbort)
	for id, conn := range r.conns {
		if conn == nil {
			continue
		}
		_ = protocol.WritePacket(conn, p)
		_ = conn.Close()
		r.conns[id] = nil
	}
	r.online = 0
}

// drain refuses connection tasks that raced the shutdown.
func (r *Runner) drain() {
	for {
		select {
		case t := <-r.tasks:
			if c, ok := t.(connectTask); ok {
				r.refuse(c.conn, "This game does not accept new players anymore.")
			}
		default:
			return
		}
	}
}
