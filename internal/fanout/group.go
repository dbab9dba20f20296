// Package fanout keeps a set of stream connections that receive the same
// frames.
package fanout

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultWriteTimeout bounds every write to a single connection.
const DefaultWriteTimeout = 2 * time.Second

// Group is a set of connections. Writes to one connection never hold up
// membership changes, and a connection whose write fails or times out is
// closed and removed.
type Group struct {
	timeout time.Duration

	mu    sync.Mutex
	conns map[net.Conn]*sync.Mutex // per-connection write lock
}

// NewGroup creates an empty group. timeout <= 0 selects
// DefaultWriteTimeout.
func NewGroup(timeout time.Duration) *Group {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Group{
		timeout: timeout,
		conns:   make(map[net.Conn]*sync.Mutex),
	}
}

// Add registers conn.
func (g *Group) Add(conn net.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.conns[conn]; !ok {
		g.conns[conn] = &sync.Mutex{}
	}
}

// Remove closes conn and forgets it. Removing an unknown connection only
// closes it.
func (g *Group) Remove(conn net.Conn) {
	g.mu.Lock()
	delete(g.conns, conn)
	g.mu.Unlock()
	conn.Close()
}

// Len returns the number of connections.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// CloseAll closes and forgets every connection, returning how many there
// were.
func (g *Group) CloseAll() int {
	g.mu.Lock()
	conns := g.conns
	g.conns = make(map[net.Conn]*sync.Mutex)
	g.mu.Unlock()

	for conn := range conns {
		conn.Close()
	}
	return len(conns)
}

// Send writes data to one member.
func (g *Group) Send(conn net.Conn, data []byte) error {
	g.mu.Lock()
	wmu, ok := g.conns[conn]
	g.mu.Unlock()
	if !ok {
		return net.ErrClosed
	}
	return g.write(conn, wmu, data)
}

// Broadcast writes data to every member and returns the joined write
// errors. Failed members are dropped.
func (g *Group) Broadcast(data []byte) error {
	g.mu.Lock()
	targets := make(map[net.Conn]*sync.Mutex, len(g.conns))
	for conn, wmu := range g.conns {
		targets[conn] = wmu
	}
	g.mu.Unlock()

	var errs []error
	for conn, wmu := range targets {
		if err := g.write(conn, wmu, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Group) write(conn net.Conn, wmu *sync.Mutex, data []byte) error {
	wmu.Lock()
	defer wmu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(g.timeout)); err != nil {
		g.Remove(conn)
		return fmt.Errorf("set write deadline for %s: %w", conn.RemoteAddr(), err)
	}
	if _, err := conn.Write(data); err != nil {
		g.Remove(conn)
		return fmt.Errorf("write to %s: %w", conn.RemoteAddr(), err)
	}
	return nil
}
