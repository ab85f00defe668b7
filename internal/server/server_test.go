package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornado80/sos-game-server/internal/config"
	"github.com/tornado80/sos-game-server/internal/db"
	"github.com/tornado80/sos-game-server/internal/game"
	"github.com/tornado80/sos-game-server/internal/model"
	"github.com/tornado80/sos-game-server/internal/protocol"
	"github.com/tornado80/sos-game-server/internal/testutil"
)

// memStore is an in-memory Store for dispatcher tests. It mirrors the
// behavior of the real store closely enough to drive full round trips
// without PostgreSQL.
type memStore struct {
	mu sync.Mutex

	// fail, when set, makes every call return it.
	fail error

	nextAccount int64
	nextToken   int
	nextGame    int64
	accounts    map[string]*memAccount
	tokens      map[string]int64
	games       map[int64]*memGame

	logs  int
	hints int
	ended map[int64]int64
}

type memAccount struct {
	id        int64
	username  string
	password  string
	firstName string
	lastName  string
	wins      int
	games     int
	joined    time.Time
	lastLogin *time.Time
}

type memGame struct {
	id          int64
	boardSize   int
	playerCount int
	maxHint     int
	creatorID   int64
	seated      map[int64]bool
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*memAccount),
		tokens:   make(map[string]int64),
		games:    make(map[int64]*memGame),
		ended:    make(map[int64]int64),
	}
}

func (m *memStore) byID(id int64) *memAccount {
	for _, a := range m.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

func (m *memStore) resolve(token string) (*memAccount, error) {
	id, ok := m.tokens[token]
	if !ok {
		return nil, db.ErrInvalidSessionToken
	}
	return m.byID(id), nil
}

func (m *memStore) purge(accountID int64) {
	for token, owner := range m.tokens {
		if owner == accountID {
			delete(m.tokens, token)
		}
	}
}

func (m *memStore) Authenticate(ctx context.Context, username, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	a, ok := m.accounts[username]
	if !ok || a.password != password {
		return "", db.ErrWrongUsernamePassword
	}
	now := time.Now()
	a.lastLogin = &now
	m.nextToken++
	token := fmt.Sprintf("session-%02d-%s", m.nextToken, strings.Repeat("x", 48))
	m.tokens[token] = a.id
	return token, nil
}

func (m *memStore) Invalidate(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.tokens[token]; !ok {
		return db.ErrInvalidSessionToken
	}
	delete(m.tokens, token)
	return nil
}

func (m *memStore) Register(ctx context.Context, username, password, firstName, lastName string, isAdmin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.accounts[username]; ok {
		return db.ErrExistingUsername
	}
	m.nextAccount++
	m.accounts[username] = &memAccount{
		id:        m.nextAccount,
		username:  username,
		password:  password,
		firstName: firstName,
		lastName:  lastName,
		joined:    time.Now(),
	}
	return nil
}

func (m *memStore) ChangePassword(ctx context.Context, token, currentPassword, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return err
	}
	if a.password != currentPassword {
		return db.ErrWrongCurrentPassword
	}
	if newPassword == currentPassword {
		return db.ErrRepeatedPassword
	}
	a.password = newPassword
	m.purge(a.id)
	return nil
}

func (m *memStore) ChangeUsername(ctx context.Context, token, currentPassword, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return err
	}
	if a.password != currentPassword {
		return db.ErrWrongCurrentPassword
	}
	if other, ok := m.accounts[username]; ok && other.id != a.id {
		return db.ErrExistingUsername
	}
	delete(m.accounts, a.username)
	a.username = username
	m.accounts[username] = a
	m.purge(a.id)
	return nil
}

func (m *memStore) EditProfile(ctx context.Context, token, currentPassword, firstName, lastName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return err
	}
	if a.password != currentPassword {
		return db.ErrWrongCurrentPassword
	}
	a.firstName = firstName
	a.lastName = lastName
	return nil
}

func (m *memStore) EditAccount(ctx context.Context, token, currentPassword, username, password, firstName, lastName string, isAdmin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return err
	}
	if a.password != currentPassword {
		return db.ErrWrongCurrentPassword
	}
	if other, ok := m.accounts[username]; ok && other.id != a.id {
		return db.ErrExistingUsername
	}
	delete(m.accounts, a.username)
	a.username = username
	a.password = password
	a.firstName = firstName
	a.lastName = lastName
	m.accounts[username] = a
	return nil
}

func (m *memStore) RemoveAccount(ctx context.Context, token, currentPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return err
	}
	if a.password != currentPassword {
		return db.ErrWrongCurrentPassword
	}
	delete(m.accounts, a.username)
	m.purge(a.id)
	return nil
}

func (m *memStore) GetAccount(ctx context.Context, token string) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return model.Profile{}, m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{
		Username:   a.username,
		FirstName:  a.firstName,
		LastName:   a.lastName,
		Wins:       a.wins,
		Games:      a.games,
		WhenJoined: a.joined,
		LastLogin:  a.lastLogin,
	}, nil
}

func (m *memStore) NewGame(ctx context.Context, token string, boardSize, playerCount int, isPublic bool, maxHint int) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, 0, m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return 0, 0, err
	}
	m.nextGame++
	m.games[m.nextGame] = &memGame{
		id:          m.nextGame,
		boardSize:   boardSize,
		playerCount: playerCount,
		maxHint:     maxHint,
		creatorID:   a.id,
		seated:      map[int64]bool{a.id: true},
	}
	return m.nextGame, a.id, nil
}

func (m *memStore) JoinGame(ctx context.Context, token string, gameID int64, creatorUsername string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	a, err := m.resolve(token)
	if err != nil {
		return 0, err
	}
	g, ok := m.games[gameID]
	if !ok {
		return 0, db.ErrWrongGameID
	}
	creator := m.byID(g.creatorID)
	if creator == nil || creator.username != creatorUsername {
		return 0, db.ErrWrongGameID
	}
	if !g.seated[a.id] && len(g.seated) >= g.playerCount {
		return 0, db.ErrGameNewPlayerBanned
	}
	g.seated[a.id] = true
	return a.id, nil
}

func (m *memStore) GameInformation(ctx context.Context, gameID int64) (model.GameInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return model.GameInfo{}, m.fail
	}
	g, ok := m.games[gameID]
	if !ok {
		return model.GameInfo{}, db.ErrGameNotFound
	}
	info := model.GameInfo{
		PlayerCount: g.playerCount,
		BoardSize:   g.boardSize,
		CreatorID:   g.creatorID,
		MaxHint:     g.maxHint,
	}
	if creator := m.byID(g.creatorID); creator != nil {
		info.CreatorUsername = creator.username
	}
	return info, nil
}

func (m *memStore) AddGameLog(ctx context.Context, gameID, accountID int64, letter string, row, column int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs++
	return nil
}

func (m *memStore) AddGameHint(ctx context.Context, gameID, accountID int64, letter string, row, column int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hints++
	return nil
}

func (m *memStore) SetGameEnded(ctx context.Context, gameID, winnerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended[gameID] = winnerID
	return nil
}

func (m *memStore) UpdateAccountGamesAndWins(ctx context.Context, accountID int64, gamesDelta, winsDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.byID(accountID); a != nil {
		a.games += gamesDelta
		a.wins += winsDelta
	}
	return nil
}

func (m *memStore) UsernameFromAccountID(ctx context.Context, accountID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.byID(accountID); a != nil {
		return a.username, nil
	}
	return "", nil
}

// startServer serves on a random loopback port until the test finishes.
func startServer(t *testing.T, store Store) (*Server, string) {
	t.Helper()

	ln, addr := testutil.ListenTCP(t)
	srv := New(config.DefaultServer(), store, game.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return srv, addr
}

func dial(t *testing.T, addr string) *testutil.TestClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return testutil.NewTestClient(t, conn)
}

func request(command string, data map[string]any) protocol.Packet {
	p := protocol.New(command)
	for key, value := range data {
		p.SetData(key, value)
	}
	return p
}

// rpc performs one request on a fresh connection.
func rpc(t *testing.T, addr string, p protocol.Packet) protocol.Packet {
	t.Helper()

	c := dial(t, addr)
	c.Send(p)
	resp := c.Recv()
	c.Close()
	return resp
}

// tryRecvCommand reads until the wanted command arrives or the deadline
// passes. Unlike TestClient.Recv it treats a timeout as a plain false.
func tryRecvCommand(t *testing.T, c *testutil.TestClient, command string, wait time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(wait)
	for {
		if err := c.Conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		p, err := protocol.ReadPacket(c.Conn)
		if err != nil {
			return false
		}
		if p.Command() == command {
			return true
		}
	}
}

func TestShortAccountRPCFlow(t *testing.T) {
	store := newMemStore()
	_, addr := startServer(t, store)

	resp := rpc(t, addr, request(protocol.CmdSignupRequest, map[string]any{
		"username": "carol", "password": "pw", "firstname": "Carol", "lastname": "Jones",
	}))
	require.Equal(t, "signup_response", resp.Command())
	assert.Empty(t, resp.Data())

	resp = rpc(t, addr, request(protocol.CmdSignupRequest, map[string]any{
		"username": "carol", "password": "other", "firstname": "C", "lastname": "J",
	}))
	assert.Equal(t, "This username exists already.", resp.DataString("error"))

	resp = rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "carol", "password": "nope",
	}))
	require.Equal(t, "login_response", resp.Command())
	assert.Equal(t, "Username or password is wrong.", resp.DataString("error"))

	resp = rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "carol", "password": "pw",
	}))
	require.Equal(t, "login_response", resp.Command())
	token := resp.DataString("session_id")
	require.NotEmpty(t, token)

	resp = rpc(t, addr, request(protocol.CmdGetAccountRequest, map[string]any{
		"session_id": token,
	}))
	require.Equal(t, "get_account_response", resp.Command())
	assert.Equal(t, "carol", resp.DataString("username"))
	assert.Equal(t, "Carol", resp.DataString("firstname"))
	assert.Equal(t, "Jones", resp.DataString("lastname"))
	assert.NotEmpty(t, resp.DataString("joined_at"))
	assert.NotEmpty(t, resp.DataString("last_login"))

	resp = rpc(t, addr, request(protocol.CmdEditPasswordRequest, map[string]any{
		"session_id": token, "password": "pw", "new_password": "pw2",
	}))
	require.Equal(t, "edit_password_response", resp.Command())
	require.Empty(t, resp.Data())

	// The password change purged every session of the account.
	resp = rpc(t, addr, request(protocol.CmdGetAccountRequest, map[string]any{
		"session_id": token,
	}))
	assert.Equal(t, "Session token is not valid.", resp.DataString("error"))

	resp = rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "carol", "password": "pw",
	}))
	assert.Equal(t, "Username or password is wrong.", resp.DataString("error"))

	resp = rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "carol", "password": "pw2",
	}))
	token = resp.DataString("session_id")
	require.NotEmpty(t, token)

	resp = rpc(t, addr, request(protocol.CmdSignoutRequest, map[string]any{
		"session_id": token,
	}))
	require.Equal(t, "signout_response", resp.Command())
	require.Empty(t, resp.Data())

	resp = rpc(t, addr, request(protocol.CmdSignoutRequest, map[string]any{
		"session_id": token,
	}))
	assert.Equal(t, "Session token is not valid.", resp.DataString("error"))
}

func TestPausedAndStoppedResponses(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Register(context.Background(), "dave", "pw", "Dave", "Lee", false))
	srv, addr := startServer(t, store)

	srv.Pause()
	resp := rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "dave", "password": "pw",
	}))
	require.Equal(t, "login_response", resp.Command())
	assert.Equal(t, "Server is paused.", resp.DataString("error"))

	srv.Resume()
	resp = rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "dave", "password": "pw",
	}))
	assert.NotEmpty(t, resp.DataString("session_id"))

	// Stopped wins over paused. Setting the flags directly keeps the
	// listener open so the response itself can be observed.
	srv.paused.Store(true)
	srv.stopped.Store(true)
	resp = rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "dave", "password": "pw",
	}))
	assert.Equal(t, "Server is stopped.", resp.DataString("error"))
}

func TestStopShutsDownServe(t *testing.T) {
	ln, addr := testutil.ListenTCP(t)
	srv := New(config.DefaultServer(), newMemStore(), game.NewRegistry())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(context.Background(), ln)
	}()

	// One round trip proves the accept loop is live before stopping.
	resp := rpc(t, addr, request("ping_request", nil))
	assert.Equal(t, "Unknown command.", resp.DataString("error"))

	srv.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}

	_, err := net.Dial("tcp", addr)
	assert.Error(t, err, "a stopped server must not accept new connections")
}

func TestUnknownCommand(t *testing.T) {
	_, addr := startServer(t, newMemStore())

	resp := rpc(t, addr, request("list_games_request", nil))
	require.Equal(t, "list_games_response", resp.Command())
	assert.Equal(t, "Unknown command.", resp.DataString("error"))
}

func TestMalformedFirstFrameClosedSilently(t *testing.T) {
	_, addr := startServer(t, newMemStore())

	t.Run("garbage payload", func(t *testing.T) {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte{0, 0, 0, 2, 'z', 'z'})
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		n, err := conn.Read(make([]byte, 64))
		assert.Error(t, err)
		assert.Zero(t, n, "no response bytes on a malformed frame")
	})

	t.Run("oversize length", func(t *testing.T) {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte{0x7f, 0xff, 0xff, 0xff})
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		n, err := conn.Read(make([]byte, 64))
		assert.Error(t, err)
		assert.Zero(t, n)
	})
}

func TestStorageFailureFlattened(t *testing.T) {
	store := newMemStore()
	_, addr := startServer(t, store)

	store.mu.Lock()
	store.fail = errors.New("pool exhausted")
	store.mu.Unlock()

	resp := rpc(t, addr, request(protocol.CmdLoginRequest, map[string]any{
		"username": "carol", "password": "pw",
	}))
	require.Equal(t, "login_response", resp.Command())
	assert.Equal(t, "Internal storage error.", resp.DataString("error"))
}

func TestGameCreateAndJoinHandoff(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Register(ctx, "xavier", "pw", "Xavier", "P", false))
	require.NoError(t, store.Register(ctx, "yvonne", "pw", "Yvonne", "Q", false))
	srv, addr := startServer(t, store)

	ownerToken, err := store.Authenticate(ctx, "xavier", "pw")
	require.NoError(t, err)
	guestToken, err := store.Authenticate(ctx, "yvonne", "pw")
	require.NoError(t, err)

	owner := dial(t, addr)
	owner.Send(request(protocol.CmdNewGameRequest, map[string]any{
		"session_id": ownerToken, "board_size": 3, "player_count": 2,
		"is_public": true, "max_hint": 1,
	}))

	// The first frame after a successful handoff is the game details.
	details := owner.Recv()
	require.Equal(t, protocol.CmdGameDetails, details.Command())
	assert.Equal(t, 1, details.DataInt("game_id"))
	assert.Equal(t, 3, details.DataInt("board_size"))
	assert.Equal(t, 2, details.DataInt("player_count"))
	assert.Equal(t, "xavier", details.DataString("creator_username"))
	assert.NotEmpty(t, details.DataString("color"))
	assert.Equal(t, 1, details.DataInt("max_hint"))
	assert.Equal(t, 1, srv.Registry().Len())

	guest := dial(t, addr)
	guest.Send(request(protocol.CmdJoinGameRequest, map[string]any{
		"session_id": guestToken, "game_id": 1, "creator_username": "xavier",
	}))
	guestDetails := guest.RecvCommand(protocol.CmdGameDetails)
	assert.Equal(t, 1, guestDetails.DataInt("game_id"))
	assert.NotEqual(t, details.DataString("color"), guestDetails.DataString("color"))

	// The roster is full, so exactly one of the two holds the turn.
	ownerHasTurn := tryRecvCommand(t, owner, protocol.CmdYourTurn, 500*time.Millisecond)
	guestHasTurn := tryRecvCommand(t, guest, protocol.CmdYourTurn, 500*time.Millisecond)
	assert.NotEqual(t, ownerHasTurn, guestHasTurn)

	// A bogus token never reaches the registry.
	c := dial(t, addr)
	c.Send(request(protocol.CmdNewGameRequest, map[string]any{
		"session_id": "bogus", "board_size": 3, "player_count": 2,
		"is_public": true, "max_hint": 0,
	}))
	resp := c.Recv()
	require.Equal(t, "new_game_response", resp.Command())
	assert.Equal(t, "Session token is not valid.", resp.DataString("error"))
}

func TestJoinGameWithoutRunner(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Register(ctx, "xavier", "pw", "Xavier", "P", false))
	require.NoError(t, store.Register(ctx, "yvonne", "pw", "Yvonne", "Q", false))
	_, addr := startServer(t, store)

	guestToken, err := store.Authenticate(ctx, "yvonne", "pw")
	require.NoError(t, err)

	// A game row without a live runner, as after idle reclamation.
	store.mu.Lock()
	owner := store.accounts["xavier"]
	store.nextGame++
	store.games[store.nextGame] = &memGame{
		id:          store.nextGame,
		boardSize:   3,
		playerCount: 2,
		creatorID:   owner.id,
		seated:      map[int64]bool{owner.id: true},
	}
	gameID := store.nextGame
	store.mu.Unlock()

	c := dial(t, addr)
	c.Send(request(protocol.CmdJoinGameRequest, map[string]any{
		"session_id": guestToken, "game_id": gameID, "creator_username": "xavier",
	}))
	resp := c.Recv()
	require.Equal(t, "join_game_response", resp.Command())
	assert.Equal(t, "Game ID or username is not valid.", resp.DataString("error"))
}
