//go:build linux

package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	mprisInterface       = "org.mpris.MediaPlayer2"
	mprisPlayerInterface = "org.mpris.MediaPlayer2.Player"
	mprisBusPrefix       = "org.mpris.MediaPlayer2."
	mprisObjectPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	trackObjectPath      = dbus.ObjectPath("/org/chatradio/track/current")
)

// playerCommands maps the argument-less Player methods to commands.
var playerCommands = map[string]Command{
	"Play":      CmdPlay,
	"Pause":     CmdPause,
	"PlayPause": CmdPlayPause,
	"Stop":      CmdStop,
	"Next":      CmdNext,
	"Previous":  CmdPrevious,
}

// MPRISSession exposes the radio as an MPRIS player on the session bus.
type MPRISSession struct {
	conn  *dbus.Conn
	name  string
	props *prop.Properties

	mu      sync.Mutex
	handler CommandHandler
}

// NewSession registers org.mpris.MediaPlayer2.<name> on the session bus
// and announces an idle player.
func NewSession(name string) (Session, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	busName := mprisBusPrefix + name
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", busName)
	}

	s := &MPRISSession{conn: conn, name: name}
	if err := s.export(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export %s: %w", busName, err)
	}
	if err := s.UpdateMetadata(Metadata{Title: name}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to publish initial metadata: %w", err)
	}
	return s, nil
}

func (s *MPRISSession) export() error {
	root := map[string]any{
		"Raise": func() *dbus.Error { return nil },
		"Quit":  func() *dbus.Error { return nil },
	}
	if err := s.conn.ExportMethodTable(root, mprisObjectPath, mprisInterface); err != nil {
		return err
	}
	if err := s.conn.ExportMethodTable(s.playerMethods(), mprisObjectPath, mprisPlayerInterface); err != nil {
		return err
	}

	props, err := prop.Export(s.conn, mprisObjectPath, propertyMap(s.name, Metadata{}, StateStopped))
	if err != nil {
		return err
	}
	s.props = props
	return nil
}

func (s *MPRISSession) playerMethods() map[string]any {
	methods := make(map[string]any, len(playerCommands)+3)
	for method, cmd := range playerCommands {
		methods[method] = func() *dbus.Error {
			return s.dispatch(cmd, nil)
		}
	}
	methods["Seek"] = func(offset int64) *dbus.Error {
		return s.dispatch(CmdSeek, offset)
	}
	methods["SetPosition"] = func(_ dbus.ObjectPath, position int64) *dbus.Error {
		return s.dispatch(CmdSeek, position)
	}
	methods["OpenUri"] = func(uri string) *dbus.Error {
		return dbus.MakeFailedError(errors.New("request songs through chat"))
	}
	return methods
}

func (s *MPRISSession) dispatch(cmd Command, data interface{}) *dbus.Error {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	if err := h.OnCommand(cmd, data); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// UpdateMetadata publishes the current track.
func (s *MPRISSession) UpdateMetadata(metadata Metadata) error {
	s.setPlayerProp("Metadata", metadataMap(metadata))
	return nil
}

// UpdatePlaybackState publishes the playback status.
func (s *MPRISSession) UpdatePlaybackState(state PlaybackState) error {
	s.setPlayerProp("PlaybackStatus", playbackStatus(state))
	return nil
}

// setPlayerProp stores a Player property and emits PropertiesChanged.
func (s *MPRISSession) setPlayerProp(name string, value any) {
	if s.props == nil {
		return
	}
	s.props.SetMust(mprisPlayerInterface, name, value)
}

func (s *MPRISSession) SetCommandHandler(handler CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *MPRISSession) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(mprisBusPrefix + s.name); err != nil {
		return err
	}
	return s.conn.Close()
}

func propertyMap(name string, metadata Metadata, state PlaybackState) prop.Map {
	constant := func(v any) *prop.Prop {
		return &prop.Prop{Value: v, Emit: prop.EmitConst}
	}
	changing := func(v any) *prop.Prop {
		return &prop.Prop{Value: v, Emit: prop.EmitTrue}
	}

	return prop.Map{
		mprisInterface: {
			"CanQuit":             constant(false),
			"CanRaise":            constant(false),
			"HasTrackList":        constant(false),
			"Identity":            constant(name),
			"DesktopEntry":        constant(name),
			"SupportedUriSchemes": constant([]string{}),
			"SupportedMimeTypes":  constant([]string{}),
		},
		mprisPlayerInterface: {
			"PlaybackStatus": changing(playbackStatus(state)),
			"Metadata":       changing(metadataMap(metadata)),
			"Position":       {Value: int64(0), Emit: prop.EmitFalse},
			"Rate":           constant(1.0),
			"MinimumRate":    constant(1.0),
			"MaximumRate":    constant(1.0),
			"Volume":         constant(1.0),
			"CanGoNext":      constant(true),
			"CanGoPrevious":  constant(false),
			"CanPlay":        constant(true),
			"CanPause":       constant(true),
			"CanSeek":        constant(false),
			"CanControl":     constant(true),
		},
	}
}

func playbackStatus(state PlaybackState) string {
	switch state {
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// metadataMap builds xesam metadata. Songs carry no tags, so the URL
// stands in for the title.
func metadataMap(metadata Metadata) map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackObjectPath),
	}
	if metadata.Title != "" {
		m["xesam:title"] = dbus.MakeVariant(metadata.Title)
	}
	if metadata.Album != "" {
		m["xesam:album"] = dbus.MakeVariant(metadata.Album)
	}
	if metadata.URL != "" {
		m["xesam:url"] = dbus.MakeVariant(metadata.URL)
	}
	return m
}
