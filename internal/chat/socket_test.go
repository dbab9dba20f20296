package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chatradio/radiobot/internal/fanout"
)

func startSocket(t *testing.T) (*SocketTransport, func()) {
	t.Helper()
	return runSocket(t, NewSocketTransport(filepath.Join(t.TempDir(), "chat.sock")))
}

func runSocket(t *testing.T, s *SocketTransport) (*SocketTransport, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("socket transport exited: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("socket transport not ready")
	}

	return s, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func dial(t *testing.T, s *SocketTransport) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("unix", s.socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func readFrame(t *testing.T, conn net.Conn, r *bufio.Reader) Outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)
	var out Outbound
	require.NoError(t, json.Unmarshal(line, &out))
	return out
}

func TestSocketDeliversMessages(t *testing.T) {
	defer goleak.VerifyNone(t)
	s, stop := startSocket(t)

	info, err := os.Stat(s.socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	conn, _ := dial(t, s)
	_, err = conn.Write([]byte(`{"id":"m1","text":"!song","chatter":{"id":"1","name":"alice"}}` + "\n"))
	require.NoError(t, err)
	_, err = conn.Write([]byte(`{"text":"!sr x","chatter":{"id":"2","name":"bob"},"badges":["vip"]}` + "\n"))
	require.NoError(t, err)

	first := receive(t, s)
	assert.Equal(t, "m1", first.ID)
	assert.Equal(t, "alice", first.Chatter.Name)

	second := receive(t, s)
	_, err = uuid.Parse(second.ID)
	assert.NoError(t, err, "missing ids are generated")
	assert.Equal(t, []string{"vip"}, second.Badges)

	conn.Close()
	stop()

	_, err = os.Stat(s.socketPath)
	assert.True(t, os.IsNotExist(err), "socket file removed on shutdown")
}

func TestSocketInvalidFrame(t *testing.T) {
	defer goleak.VerifyNone(t)
	s, stop := startSocket(t)
	defer stop()

	conn, r := dial(t, s)
	_, err := conn.Write([]byte("garbage\n"))
	require.NoError(t, err)

	out := readFrame(t, conn, r)
	assert.Equal(t, OutboundError, out.Type)
	assert.Equal(t, "invalid message format", out.Error)

	// The connection stays usable.
	_, err = conn.Write([]byte(`{"id":"ok","text":"!song"}` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, "ok", receive(t, s).ID)
}

func TestSocketReplyBroadcasts(t *testing.T) {
	defer goleak.VerifyNone(t)
	s, stop := startSocket(t)
	defer stop()

	a, ra := dial(t, s)
	b, rb := dial(t, s)

	// Make sure both clients are registered before replying.
	for _, c := range []net.Conn{a, b} {
		_, err := c.Write([]byte(`{"text":"hello"}` + "\n"))
		require.NoError(t, err)
		receive(t, s)
	}

	require.NoError(t, s.Reply(context.Background(), "now playing", "m1"))

	for _, pair := range []struct {
		conn net.Conn
		r    *bufio.Reader
	}{{a, ra}, {b, rb}} {
		out := readFrame(t, pair.conn, pair.r)
		assert.Equal(t, Outbound{Type: OutboundReply, Text: "now playing", ReplyTo: "m1"}, out)
	}
}

func TestSocketReplyWithoutClients(t *testing.T) {
	s := NewSocketTransport(filepath.Join(t.TempDir(), "chat.sock"))
	assert.NoError(t, s.Reply(context.Background(), "nobody listening", ""))
}

func TestSocketReplyDropsStalledClient(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := NewSocketTransport(filepath.Join(t.TempDir(), "chat.sock"))
	s.clients = fanout.NewGroup(500 * time.Millisecond)
	s, stop := runSocket(t, s)
	defer stop()

	stalled, _ := dial(t, s)
	healthy, r := dial(t, s)
	for _, c := range []net.Conn{stalled, healthy} {
		_, err := c.Write([]byte(`{"text":"hello"}` + "\n"))
		require.NoError(t, err)
		receive(t, s)
	}

	// Large enough to fill the socket buffers of a client that never reads.
	big := strings.Repeat("x", 2<<20)
	lines := make(chan []byte, 1)
	go func() {
		healthy.SetReadDeadline(time.Now().Add(10 * time.Second))
		line, _ := r.ReadBytes('\n')
		lines <- line
	}()

	start := time.Now()
	err := s.Reply(context.Background(), big, "m1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var out Outbound
	require.NoError(t, json.Unmarshal(<-lines, &out))
	assert.Len(t, out.Text, len(big))
	assert.Equal(t, 1, s.clients.Len())

	require.NoError(t, s.Reply(context.Background(), "still here", "m2"))
	assert.Equal(t, "still here", readFrame(t, healthy, r).Text)
}
