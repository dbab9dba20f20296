// Package radio runs the chat-controlled radio: the playback queue, song
// requests, skips, media keys and random auto-fill.
package radio

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/audio"
	"github.com/chatradio/radiobot/internal/command"
	"github.com/chatradio/radiobot/internal/config"
	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/media"
	"github.com/chatradio/radiobot/internal/metrics"
	"github.com/chatradio/radiobot/internal/queue"
	"github.com/chatradio/radiobot/internal/song"
)

// ErrPlayback wraps failures to open or decode a track for the sink.
var ErrPlayback = errors.New("playback failed")

// Fetcher makes songs available locally.
type Fetcher interface {
	EnsureLocal(ctx context.Context, id song.Identity, dir string) (string, error)
	SyncPlaylist(ctx context.Context, playlist, dir string) error
}

// Library is the pool random auto-fill picks from.
type Library interface {
	Scan(ctx context.Context) error
	Candidates() []song.Identity
	Path(id song.Identity) (string, bool)
	Remove(id song.Identity)
}

// EventSource yields media-control events without blocking.
type EventSource interface {
	Poll() (media.Event, bool)
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Sink    audio.Sink
	Fetcher Fetcher
	Library Library
	Events  EventSource
	Session media.Session // optional
	Store   *queue.Store  // optional, persists history
	Rand    *rand.Rand    // optional
}

type (
	currentSongArgs struct{}
	skipArgs        struct{}
	requestArgs     struct{ song song.Identity }
)

// Engine is the radio command handler. It is not safe for concurrent use;
// the bot loop is its only caller.
type Engine struct {
	cfg     config.RadioConfig
	sink    audio.Sink
	fetcher Fetcher
	library Library
	events  EventSource
	session media.Session
	store   *queue.Store
	rng     *rand.Rand
	logger  zerolog.Logger

	queue   *queue.Queue
	history *queue.History
	// loaded is true while the queue front has been handed to the sink.
	loaded   bool
	starving bool
}

// New syncs the configured playlist into the playlist directory, indexes
// it and returns an idle engine. The sync blocks until the downloader is
// done.
func New(ctx context.Context, cfg config.RadioConfig, deps Deps) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		sink:    deps.Sink,
		fetcher: deps.Fetcher,
		library: deps.Library,
		events:  deps.Events,
		session: deps.Session,
		store:   deps.Store,
		rng:     deps.Rand,
		logger:  log.WithComponent("radio"),
		queue:   queue.NewQueue(),
		history: queue.NewHistory(cfg.HistoryLen),
	}
	if e.session == nil {
		e.session = media.NewNoOpSession()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if err := e.fetcher.SyncPlaylist(ctx, cfg.Playlist, cfg.PlaylistPath); err != nil {
		return nil, err
	}
	if err := e.library.Scan(ctx); err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.Load(e.history); err != nil {
			e.logger.Warn().Err(err).Msg("failed to restore history, starting empty")
		} else if e.history.Len() > 0 {
			e.logger.Info().Int("songs", e.history.Len()).Msg("history restored")
		}
	}

	return e, nil
}

// Name implements command.Handler.
func (e *Engine) Name() string {
	return "radio"
}

// Parse implements command.Handler.
func (e *Engine) Parse(msg command.Message) command.Result {
	switch msg.Command() {
	case "!currentsong", "!song":
		return command.Execute(currentSongArgs{})
	case "!skipsong", "!skip":
		if len(e.cfg.SkipRoles) > 0 && !msg.HasAnyBadge(e.cfg.SkipRoles...) {
			return command.InsufficientPermissions()
		}
		return command.Execute(skipArgs{})
	case "!songrequest", "!sr":
		args := msg.Args()
		if len(args) == 0 {
			return command.BadArguments("Must include URL")
		}
		id, err := song.ParseURL(args[0])
		if err != nil {
			var bad *song.BadRequestError
			if errors.As(err, &bad) {
				return command.BadArguments(bad.Reason)
			}
			return command.BadArguments("Invalid URL")
		}
		return command.Execute(requestArgs{song: id})
	}
	return command.WrongCommand()
}

// Execute implements command.Handler.
func (e *Engine) Execute(ctx context.Context, args any, msg command.Message, r command.Replier) error {
	switch a := args.(type) {
	case currentSongArgs:
		front, ok := e.queue.Front()
		if !ok {
			return nil
		}
		if err := r.Reply(ctx, front.Song.URL(), msg.ID); err != nil {
			e.logger.Debug().Err(err).Msg("reply failed")
		}
		return nil

	case skipArgs:
		e.logger.Info().Str("chatter", msg.Chatter.Name).Msg("skip requested")
		e.skip()
		return nil

	case requestArgs:
		return e.request(ctx, a.song, msg, r)
	}
	return fmt.Errorf("radio: unexpected arguments %T", args)
}

func (e *Engine) request(ctx context.Context, id song.Identity, msg command.Message, r command.Replier) error {
	e.logger.Info().
		Str("chatter", msg.Chatter.Name).
		Str("chatter_id", msg.Chatter.ID).
		Str("url", id.URL()).
		Msg("song requested")

	path, err := e.fetcher.EnsureLocal(ctx, id, e.cfg.RequestedPath)
	if err != nil {
		metrics.IncRequest("fetch_error")
		return err
	}

	if err := e.enqueueAndPlayIfIdle(queue.Item{Song: id, Path: path}); err != nil {
		metrics.IncRequest("playback_error")
		return err
	}
	metrics.IncRequest("accepted")

	if e.cfg.RequestReply != "" {
		text := strings.NewReplacer("{url}", id.URL(), "{chatter}", msg.Chatter.Name).Replace(e.cfg.RequestReply)
		if err := r.Reply(ctx, text, msg.ID); err != nil {
			e.logger.Debug().Err(err).Msg("reply failed")
		}
	}
	return nil
}

// enqueueAndPlayIfIdle loads item straight into the sink when nothing is
// queued, otherwise queues it behind everything already waiting.
func (e *Engine) enqueueAndPlayIfIdle(item queue.Item) error {
	if e.queue.Len() == 0 {
		if err := e.load(item, "request"); err != nil {
			return err
		}
		return nil
	}
	e.queue.Push(item)
	metrics.QueueLength.Set(float64(e.queue.Len()))
	e.logger.Info().Str("song", item.Song.String()).Int("position", e.queue.Len()-1).Msg("song queued")
	return nil
}

// load hands item to the sink and makes it the queue front. The queue
// must be empty or its front already popped.
func (e *Engine) load(item queue.Item, source string) error {
	if err := e.sink.AppendFile(item.Path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPlayback, item.Song, err)
	}
	e.sink.Play()

	if e.queue.Len() == 0 {
		e.queue.Push(item)
	}
	e.loaded = true
	e.starving = false
	e.history.Record(item.Song)
	e.saveHistory()

	metrics.IncTrackLoaded(source)
	metrics.QueueLength.Set(float64(e.queue.Len()))
	e.logger.Info().Str("song", item.Song.String()).Str("source", source).Msg("now playing")

	e.publish(item.Song, media.StatePlaying)
	return nil
}

func (e *Engine) skip() {
	metrics.SkipsTotal.Inc()
	e.sink.SkipOne()
}

// Update implements command.Updater. It consumes at most one media event,
// then refills the sink if it ran dry.
func (e *Engine) Update(ctx context.Context, _ command.Replier) error {
	if ev, ok := e.events.Poll(); ok {
		e.handleEvent(ev)
	}

	if !e.sink.Empty() {
		return nil
	}
	e.advance()
	return nil
}

func (e *Engine) handleEvent(ev media.Event) {
	metrics.MediaEventsTotal.WithLabelValues(ev.String()).Inc()
	switch ev {
	case media.EventTogglePlayPause:
		e.setPaused(!e.sink.IsPaused())
	case media.EventPlay:
		e.setPaused(false)
	case media.EventPause:
		e.setPaused(true)
	case media.EventNext:
		e.skip()
	case media.EventPrevious:
		e.logger.Info().Msg("media control previous not implemented")
	default:
		e.logger.Debug().Str("event", ev.String()).Msg("ignoring media event")
	}
}

func (e *Engine) setPaused(paused bool) {
	if paused == e.sink.IsPaused() {
		return
	}
	if paused {
		e.sink.Pause()
		e.setState(media.StatePaused)
		return
	}
	e.sink.Play()
	e.setState(media.StatePlaying)
}

// advance drops the finished front and loads the next queued song, or a
// random one when the queue is exhausted.
func (e *Engine) advance() {
	if e.loaded {
		e.queue.Pop()
		e.loaded = false
	}

	for {
		next, ok := e.queue.Front()
		if !ok {
			break
		}
		if err := e.load(next, "queue"); err != nil {
			e.queue.Pop()
			e.logger.Error().Err(err).Str("song", next.Song.String()).Msg("dropping unplayable queued song")
			continue
		}
		return
	}
	metrics.QueueLength.Set(0)

	id, ok := queue.SelectRandomNext(e.library.Candidates(), e.history, e.rng)
	if !ok {
		if !e.starving {
			e.starving = true
			e.logger.Warn().Int("history", e.history.Len()).Msg("no song eligible for random play, waiting")
			e.setState(media.StateStopped)
		}
		return
	}

	path, ok := e.library.Path(id)
	if !ok {
		return
	}
	if err := e.load(queue.Item{Song: id, Path: path}, "random"); err != nil {
		e.library.Remove(id)
		e.logger.Error().Err(err).Str("song", id.String()).Msg("removing unplayable song from library")
	}
}

func (e *Engine) publish(id song.Identity, state media.PlaybackState) {
	meta := media.Metadata{
		Title: id.URL(),
		Album: string(id.Platform()),
		URL:   id.URL(),
	}
	if err := e.session.UpdateMetadata(meta); err != nil {
		e.logger.Debug().Err(err).Msg("failed to update media metadata")
	}
	e.setState(state)
}

func (e *Engine) setState(state media.PlaybackState) {
	if err := e.session.UpdatePlaybackState(state); err != nil {
		e.logger.Debug().Err(err).Msg("failed to update media playback state")
	}
}

func (e *Engine) saveHistory() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.history); err != nil {
		e.logger.Warn().Err(err).Msg("failed to save history")
	}
}

// Queue returns the queued songs, the one playing first.
func (e *Engine) Queue() []queue.Item {
	return e.queue.Items()
}

// History returns recently played songs, oldest first.
func (e *Engine) History() []song.Identity {
	return e.history.Items()
}

var (
	_ command.Handler = (*Engine)(nil)
	_ command.Updater = (*Engine)(nil)
)
