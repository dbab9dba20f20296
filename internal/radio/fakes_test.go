package radio

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatradio/radiobot/internal/config"
	"github.com/chatradio/radiobot/internal/media"
	"github.com/chatradio/radiobot/internal/song"
)

type fakeSink struct {
	tracks []string
	paused bool
	fail   map[string]bool
	volume float64
}

func (s *fakeSink) AppendFile(path string) error {
	if s.fail[path] {
		return errors.New("decode failed")
	}
	s.tracks = append(s.tracks, path)
	return nil
}

func (s *fakeSink) Play()          { s.paused = false }
func (s *fakeSink) Pause()         { s.paused = true }
func (s *fakeSink) IsPaused() bool { return s.paused }
func (s *fakeSink) Empty() bool    { return len(s.tracks) == 0 }
func (s *fakeSink) SetVolume(v float64) {
	s.volume = v
}
func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) SkipOne() {
	if len(s.tracks) > 0 {
		s.tracks = s.tracks[1:]
	}
}

// finish simulates the playing track reaching its end.
func (s *fakeSink) finish() {
	s.SkipOne()
}

type fakeFetcher struct {
	ext      string
	requests []song.Identity
	synced   []string
	err      error
	syncErr  error
}

func (f *fakeFetcher) EnsureLocal(_ context.Context, id song.Identity, dir string) (string, error) {
	f.requests = append(f.requests, id)
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(dir, id.Filename(f.ext)), nil
}

func (f *fakeFetcher) SyncPlaylist(_ context.Context, playlist, dir string) error {
	f.synced = append(f.synced, playlist+"->"+dir)
	return f.syncErr
}

type fakeLibrary struct {
	dir     string
	ids     []song.Identity
	scanned int
}

func (l *fakeLibrary) Scan(context.Context) error {
	l.scanned++
	return nil
}

func (l *fakeLibrary) Candidates() []song.Identity {
	return append([]song.Identity(nil), l.ids...)
}

func (l *fakeLibrary) Path(id song.Identity) (string, bool) {
	for _, c := range l.ids {
		if c == id {
			return filepath.Join(l.dir, id.Filename("ogg")), true
		}
	}
	return "", false
}

func (l *fakeLibrary) Remove(id song.Identity) {
	for i, c := range l.ids {
		if c == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			return
		}
	}
}

type fakeEvents struct {
	pending []media.Event
}

func (e *fakeEvents) push(ev ...media.Event) {
	e.pending = append(e.pending, ev...)
}

func (e *fakeEvents) Poll() (media.Event, bool) {
	if len(e.pending) == 0 {
		return 0, false
	}
	ev := e.pending[0]
	e.pending = e.pending[1:]
	return ev, true
}

type fakeSession struct {
	media.NoOpSession
	metadata []media.Metadata
	states   []media.PlaybackState
}

func (s *fakeSession) UpdateMetadata(m media.Metadata) error {
	s.metadata = append(s.metadata, m)
	return nil
}

func (s *fakeSession) UpdatePlaybackState(state media.PlaybackState) error {
	s.states = append(s.states, state)
	return nil
}

type reply struct {
	text    string
	replyTo string
}

type recordReplier struct {
	replies []reply
}

func (r *recordReplier) Reply(_ context.Context, text, replyTo string) error {
	r.replies = append(r.replies, reply{text: text, replyTo: replyTo})
	return nil
}

type harness struct {
	engine  *Engine
	sink    *fakeSink
	fetcher *fakeFetcher
	library *fakeLibrary
	events  *fakeEvents
	session *fakeSession
	replier *recordReplier
	cfg     config.RadioConfig
}

func testConfig() config.RadioConfig {
	return config.RadioConfig{
		Playlist:       "https://www.youtube.com/playlist?list=PLtest",
		PlaylistPath:   "/radio/playlist",
		RequestedPath:  "/radio/requested",
		HistoryLen:     2,
		AudioFormat:    "vorbis",
		AudioFormatExt: "ogg",
	}
}

func newHarness(t *testing.T, mutate func(*config.RadioConfig), library ...song.Identity) *harness {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		sink:    &fakeSink{fail: map[string]bool{}},
		fetcher: &fakeFetcher{ext: "ogg"},
		library: &fakeLibrary{dir: cfg.PlaylistPath, ids: library},
		events:  &fakeEvents{},
		session: &fakeSession{},
		replier: &recordReplier{},
		cfg:     cfg,
	}

	e, err := New(context.Background(), cfg, Deps{
		Sink:    h.sink,
		Fetcher: h.fetcher,
		Library: h.library,
		Events:  h.events,
		Session: h.session,
		Rand:    rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)
	h.engine = e
	return h
}

func mustSong(t *testing.T, id string) song.Identity {
	t.Helper()
	s, err := song.NewYouTube(id)
	require.NoError(t, err)
	return s
}
