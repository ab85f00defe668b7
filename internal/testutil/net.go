package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/tornado80/sos-game-server/internal/protocol"
)

// exchangeTimeout bounds every single packet read and write in tests so a
// stuck peer fails the test instead of hanging it.
const exchangeTimeout = 5 * time.Second

// PipeConn returns both ends of an in-memory connection and closes them
// when the test finishes.
func PipeConn(tb testing.TB) (client, server net.Conn) {
	tb.Helper()

	server, client = net.Pipe()

	tb.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	return client, server
}

// ListenTCP opens a TCP listener on a random local port and closes it when
// the test finishes.
func ListenTCP(tb testing.TB) (net.Listener, string) {
	tb.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create TCP listener: %v", err)
	}

	tb.Cleanup(func() {
		_ = listener.Close()
	})

	return listener, listener.Addr().String()
}

// TestClient drives one end of a connection packet by packet.
type TestClient struct {
	tb   testing.TB
	Conn net.Conn
}

// NewTestClient wraps conn. The connection is closed when the test
// finishes.
func NewTestClient(tb testing.TB, conn net.Conn) *TestClient {
	tb.Helper()

	tb.Cleanup(func() {
		_ = conn.Close()
	})

	return &TestClient{tb: tb, Conn: conn}
}

// Send writes one packet and fails the test on any error.
func (c *TestClient) Send(p protocol.Packet) {
	c.tb.Helper()

	if err := c.Conn.SetWriteDeadline(time.Now().Add(exchangeTimeout)); err != nil {
		c.tb.Fatalf("set write deadline: %v", err)
	}
	if err := protocol.WritePacket(c.Conn, p); err != nil {
		c.tb.Fatalf("write packet: %v", err)
	}
}

// Recv reads one packet and fails the test on any error.
func (c *TestClient) Recv() protocol.Packet {
	c.tb.Helper()

	if err := c.Conn.SetReadDeadline(time.Now().Add(exchangeTimeout)); err != nil {
		c.tb.Fatalf("set read deadline: %v", err)
	}
	p, err := protocol.ReadPacket(c.Conn)
	if err != nil {
		c.tb.Fatalf("read packet: %v", err)
	}
	return p
}

// RecvCommand reads packets until one carries the wanted command,
// discarding everything before it.
func (c *TestClient) RecvCommand(command string) protocol.Packet {
	c.tb.Helper()

	for {
		p := c.Recv()
		if p.Command() == command {
			return p
		}
	}
}

// Close closes the underlying connection.
func (c *TestClient) Close() {
	_ = c.Conn.Close()
}
