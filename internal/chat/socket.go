package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/command"
	"github.com/chatradio/radiobot/internal/fanout"
	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/metrics"
)

// SocketTransport is a local chat over a unix socket, for running the bot
// without a streaming platform. Every client sees every reply.
type SocketTransport struct {
	socketPath string
	messages   chan command.Message
	logger     zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	clients  *fanout.Group
	ready    chan struct{}
}

// NewSocketTransport creates a transport listening on socketPath.
func NewSocketTransport(socketPath string) *SocketTransport {
	return &SocketTransport{
		socketPath: socketPath,
		messages:   make(chan command.Message, messageBuffer),
		logger:     log.WithComponent("chat").With().Str("transport", "socket").Logger(),
		clients:    fanout.NewGroup(fanout.DefaultWriteTimeout),
		ready:      make(chan struct{}),
	}
}

func (s *SocketTransport) Name() string {
	return "socket"
}

func (s *SocketTransport) Messages() <-chan command.Message {
	return s.messages
}

// Ready is closed once the socket accepts connections.
func (s *SocketTransport) Ready() <-chan struct{} {
	return s.ready
}

// Run listens until ctx is done, then closes every client and removes the
// socket file.
func (s *SocketTransport) Run(ctx context.Context) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set socket permissions (user-only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info().Str("path", s.socketPath).Msg("listening")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx, &wg)
	}()

	<-ctx.Done()

	clientCount := s.clients.CloseAll()
	listener.Close()
	wg.Wait()
	os.RemoveAll(s.socketPath)

	s.logger.Info().Int("clients", clientCount).Msg("socket closed")
	return nil
}

func (s *SocketTransport) acceptLoop(ctx context.Context, wg *sync.WaitGroup) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Warn().Err(err).Msg("accept error")
			continue
		}

		s.clients.Add(conn)
		s.logger.Debug().Int("clients", s.clients.Len()).Msg("client connected")

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *SocketTransport) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		s.clients.Remove(conn)
		s.logger.Debug().Msg("client disconnected")
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn().Err(err).Msg("read error")
			}
			return
		}

		in, err := DecodeInbound(line)
		if err != nil {
			s.logger.Warn().Err(err).Msg("invalid message format")
			s.send(conn, &Outbound{Type: OutboundError, Error: "invalid message format"})
			continue
		}
		if in.ID == "" {
			in.ID = uuid.NewString()
		}

		metrics.ChatMessagesTotal.WithLabelValues(s.Name()).Inc()
		select {
		case s.messages <- in.Message():
		case <-ctx.Done():
			return
		}
	}
}

// Reply implements command.Replier by broadcasting to every client. A
// client that cannot take the frame within the write timeout is
// disconnected.
func (s *SocketTransport) Reply(_ context.Context, text, replyTo string) error {
	data, err := EncodeOutbound(&Outbound{Type: OutboundReply, Text: text, ReplyTo: replyTo})
	if err != nil {
		return err
	}
	return s.clients.Broadcast(data)
}

func (s *SocketTransport) send(conn net.Conn, out *Outbound) {
	data, err := EncodeOutbound(out)
	if err != nil {
		return
	}
	if err := s.clients.Send(conn, data); err != nil {
		s.logger.Debug().Err(err).Msg("dropping client")
	}
}

var _ Transport = (*SocketTransport)(nil)
