// Package media provides OS-level media session integration.
package media

import (
	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/metrics"
)

// PlaybackState represents the playback state for media sessions
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

// Metadata contains track metadata for media session display
type Metadata struct {
	Title string
	Album string
	URL   string
}

// Session is the interface for OS media session integration
type Session interface {
	// UpdateMetadata updates the currently playing track metadata
	UpdateMetadata(metadata Metadata) error

	// UpdatePlaybackState updates the playback state
	UpdatePlaybackState(state PlaybackState) error

	// SetCommandHandler sets the handler for media commands (play, pause, etc.)
	SetCommandHandler(handler CommandHandler)

	// Close releases resources
	Close() error
}

// Command represents a media command from the OS
type Command int

const (
	CmdPlay Command = iota
	CmdPause
	CmdPlayPause
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeek
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdPlay:
		return "Play"
	case CmdPause:
		return "Pause"
	case CmdPlayPause:
		return "PlayPause"
	case CmdStop:
		return "Stop"
	case CmdNext:
		return "Next"
	case CmdPrevious:
		return "Previous"
	case CmdSeek:
		return "Seek"
	default:
		return "Unknown"
	}
}

// CommandHandler handles media commands from the OS
type CommandHandler interface {
	OnCommand(cmd Command, data interface{}) error
}

// CommandHandlerFunc is a function adapter for CommandHandler
type CommandHandlerFunc func(cmd Command, data interface{}) error

func (f CommandHandlerFunc) OnCommand(cmd Command, data interface{}) error {
	return f(cmd, data)
}

// Event is what the radio reacts to. Every OS command maps to one.
type Event int

const (
	EventTogglePlayPause Event = iota
	EventNext
	EventPrevious
	EventPlay
	EventPause
	EventOther
)

func (e Event) String() string {
	switch e {
	case EventTogglePlayPause:
		return "toggle"
	case EventNext:
		return "next"
	case EventPrevious:
		return "previous"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	default:
		return "other"
	}
}

// EventFor maps an OS command to a radio event.
func EventFor(cmd Command) Event {
	switch cmd {
	case CmdPlayPause:
		return EventTogglePlayPause
	case CmdNext:
		return EventNext
	case CmdPrevious:
		return EventPrevious
	case CmdPlay:
		return EventPlay
	case CmdPause:
		return EventPause
	default:
		return EventOther
	}
}

// DefaultEventBuffer is the capacity of an EventQueue built by the bot.
const DefaultEventBuffer = 16

// EventQueue is a CommandHandler funnelling OS commands into a bounded
// channel with a single consumer. Producers never block: when the
// channel is full the event is dropped.
type EventQueue struct {
	ch     chan Event
	logger zerolog.Logger
}

// NewEventQueue creates a queue holding up to size pending events.
func NewEventQueue(size int) *EventQueue {
	if size < 1 {
		size = 1
	}
	return &EventQueue{
		ch:     make(chan Event, size),
		logger: log.WithComponent("media"),
	}
}

// OnCommand implements CommandHandler.
func (q *EventQueue) OnCommand(cmd Command, _ interface{}) error {
	ev := EventFor(cmd)
	select {
	case q.ch <- ev:
	default:
		metrics.MediaEventsDroppedTotal.Inc()
		q.logger.Warn().Str("command", cmd.String()).Msg("media event dropped, channel full")
	}
	return nil
}

// Poll returns the next pending event without blocking.
func (q *EventQueue) Poll() (Event, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return 0, false
	}
}

// NoOpSession is a session that does nothing
// Used when media session integration is not available
type NoOpSession struct{}

// NewNoOpSession creates a new no-op session
func NewNoOpSession() *NoOpSession {
	return &NoOpSession{}
}

func (s *NoOpSession) UpdateMetadata(metadata Metadata) error {
	return nil
}

func (s *NoOpSession) UpdatePlaybackState(state PlaybackState) error {
	return nil
}

func (s *NoOpSession) SetCommandHandler(handler CommandHandler) {
}

func (s *NoOpSession) Close() error {
	return nil
}
