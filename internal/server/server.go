package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tornado80/sos-game-server/internal/config"
	"github.com/tornado80/sos-game-server/internal/game"
	"github.com/tornado80/sos-game-server/internal/model"
)

// Store is the persistence surface the dispatcher calls into. The game
// half is embedded so runners created here reuse the same store.
type Store interface {
	game.Store

	Authenticate(ctx context.Context, username, password string) (string, error)
	Invalidate(ctx context.Context, token string) error
	Register(ctx context.Context, username, password, firstName, lastName string, isAdmin bool) error
	ChangePassword(ctx context.Context, token, currentPassword, newPassword string) error
	ChangeUsername(ctx context.Context, token, currentPassword, username string) error
	EditProfile(ctx context.Context, token, currentPassword, firstName, lastName string) error
	EditAccount(ctx context.Context, token, currentPassword, username, password, firstName, lastName string, isAdmin bool) error
	RemoveAccount(ctx context.Context, token, currentPassword string) error
	GetAccount(ctx context.Context, token string) (model.Profile, error)
	NewGame(ctx context.Context, token string, boardSize, playerCount int, isPublic bool, maxHint int) (int64, int64, error)
	JoinGame(ctx context.Context, token string, gameID int64, creatorUsername string) (int64, error)
	GameInformation(ctx context.Context, gameID int64) (model.GameInfo, error)
}

// Server accepts client connections, answers short account requests and
// hands game sockets over to their runners. It owns the listener, the
// pause/stop flags and the registry of live games.
type Server struct {
	cfg      config.Server
	store    Store
	registry *game.Registry

	paused  atomic.Bool
	stopped atomic.Bool

	listener net.Listener
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// New creates a Server around an opened store.
func New(cfg config.Server, store Store, registry *game.Registry) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
	}
}

// Registry returns the registry of live game runners.
func (s *Server) Registry() *game.Registry {
	return s.registry
}

// Addr returns the address the server listens on.
// Returns nil if the server is not running yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and stops the accept loop.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Pause makes the server answer every request with a paused error. The
// listener keeps accepting.
func (s *Server) Pause() {
	s.paused.Store(true)
	slog.Info("server paused")
}

// Resume lifts a pause.
func (s *Server) Resume() {
	s.paused.Store(false)
	slog.Info("server resumed")
}

// Stop marks the server stopped and cancels the serve context, which
// shuts the listener. Connections accepted before the shutdown get a
// stopped error for their one request; live runners are aborted.
func (s *Server) Stop() {
	s.stopped.Store(true)
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	slog.Info("server stopped")
}

// Run begins listening for client connections on the configured address
// and serves until ctx is cancelled or Stop is called.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections from a ready listener.
// Used for testing with an arbitrary listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("sos server started", "address", ln.Addr())
		acceptLoop(ctx, &wg, s, ln)
	})

	wg.Wait()

	return nil
}

func acceptLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	srv *Server,
	ln net.Listener,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("Failed to accept new connection", "error", err)
				continue
			}
			wg.Go(func() {
				handleConnection(ctx, srv, conn)
			})
		}
	}
}
