package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/hajimehoshi/oto/v2"
	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/log"
)

const (
	defaultSampleRate = 44100
	defaultChannels   = 2
	defaultBitDepth   = 2 // 16-bit = 2 bytes
	bytesPerFrame     = defaultChannels * defaultBitDepth

	resampleQuality = 4
)

type track struct {
	path   string
	stream beep.Streamer
	closer io.Closer
}

func (t *track) close() {
	if t.closer != nil {
		t.closer.Close()
	}
}

// OtoSink plays a list of tracks back to back through an Oto player.
type OtoSink struct {
	context    *oto.Context
	player     oto.Player // oto.Player is an interface, not a pointer
	sampleRate beep.SampleRate
	mu         sync.Mutex
	cond       *sync.Cond // Condition variable for pause/resume synchronization
	tracks     []*track
	samples    [][2]float64
	volume     float64 // 0.0 - 1.0
	paused     bool
	closed     bool // True when output is closed - unblocks waiting goroutines
	logger     zerolog.Logger
}

// NewOtoSink opens the default output device at 44.1kHz stereo.
func NewOtoSink() (*OtoSink, error) {
	return NewOtoSinkWithRate(defaultSampleRate)
}

// NewOtoSinkWithRate opens the default output device at sampleRate.
func NewOtoSinkWithRate(sampleRate int) (*OtoSink, error) {
	ctx, ready, err := oto.NewContext(sampleRate, defaultChannels, defaultBitDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	// Wait for context to be ready
	<-ready

	s := newSink(beep.SampleRate(sampleRate))
	s.context = ctx
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

func newSink(rate beep.SampleRate) *OtoSink {
	s := &OtoSink{
		sampleRate: rate,
		volume:     1.0,
		logger:     log.WithComponent("audio"),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Read implements io.Reader for the player to read from. It mixes nothing:
// frames come from the head track until it ends, then from the next one.
func (s *OtoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Block while paused and not closed, waiting for Play() or Close()
	for s.paused && !s.closed {
		s.cond.Wait()
	}

	if s.closed {
		return 0, io.EOF
	}

	frames := len(p) / bytesPerFrame
	if cap(s.samples) < frames {
		s.samples = make([][2]float64, frames)
	}
	buf := s.samples[:frames]

	filled := 0
	for filled < frames && len(s.tracks) > 0 {
		head := s.tracks[0]
		n, ok := head.stream.Stream(buf[filled:])
		filled += n
		if !ok || n == 0 {
			if err := head.stream.Err(); err != nil {
				s.logger.Warn().Err(err).Str("path", head.path).Msg("track ended with error")
			}
			s.dropHeadLocked()
		}
	}

	// Pad with silence to keep the stream alive
	for i := filled; i < frames; i++ {
		buf[i] = [2]float64{}
	}

	encodeS16LE(p, buf)
	for i := frames * bytesPerFrame; i < len(p); i++ {
		p[i] = 0
	}

	if s.volume < 1.0 {
		s.applyVolume(p)
	}
	return len(p), nil
}

// encodeS16LE writes stereo frames as signed 16-bit little-endian PCM.
func encodeS16LE(dst []byte, frames [][2]float64) {
	for i, frame := range frames {
		for ch := 0; ch < defaultChannels; ch++ {
			v := frame[ch]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			sample := int16(v * 32767)
			off := i*bytesPerFrame + ch*defaultBitDepth
			dst[off] = byte(sample)
			dst[off+1] = byte(sample >> 8)
		}
	}
}

// applyVolume scales 16-bit PCM samples by the current volume
func (s *OtoSink) applyVolume(data []byte) {
	vol := s.volume
	if vol >= 1.0 {
		return
	}

	// Process 16-bit samples (2 bytes per sample, little-endian)
	for i := 0; i < len(data)-1; i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		scaled := int16(float64(sample) * vol)
		data[i] = byte(scaled)
		data[i+1] = byte(scaled >> 8)
	}
}

// AppendFile decodes path, resampling to the device rate if needed, and
// queues it behind the loaded tracks.
func (s *OtoSink) AppendFile(path string) error {
	d, err := Decode(path)
	if err != nil {
		return err
	}

	var st beep.Streamer = d.Stream
	if d.Format.SampleRate != s.sampleRate {
		st = beep.Resample(resampleQuality, d.Format.SampleRate, s.sampleRate, st)
	}

	s.push(&track{path: path, stream: st, closer: d})
	s.logger.Debug().Str("path", path).Int("rate", int(d.Format.SampleRate)).Msg("track appended")
	return nil
}

func (s *OtoSink) push(t *track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		t.close()
		return
	}
	s.tracks = append(s.tracks, t)
}

func (s *OtoSink) dropHeadLocked() {
	s.tracks[0].close()
	s.tracks[0] = nil
	s.tracks = s.tracks[1:]
}

// SkipOne drops the track currently playing.
func (s *OtoSink) SkipOne() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tracks) > 0 {
		s.dropHeadLocked()
	}
}

// Empty reports whether no track is loaded.
func (s *OtoSink) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks) == 0
}

// Len returns the number of loaded tracks.
func (s *OtoSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

// Pause pauses audio playback
func (s *OtoSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = true
	if s.player != nil && s.player.IsPlaying() {
		s.player.Pause()
	}
}

// Play resumes audio playback
func (s *OtoSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = false
	s.cond.Broadcast() // Wake up any blocked Read() goroutines
	if s.player != nil && !s.player.IsPlaying() {
		s.player.Play()
	}
}

// IsPaused reports whether playback is paused.
func (s *OtoSink) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetVolume sets the playback volume (0.0 - 1.0)
func (s *OtoSink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume = v
}

// Volume returns the current volume
func (s *OtoSink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Close stops playback and releases every loaded track.
func (s *OtoSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast() // Wake up any blocked Read() goroutines so they can exit
	for len(s.tracks) > 0 {
		s.dropHeadLocked()
	}
	player := s.player
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}

var (
	_ io.Reader = (*OtoSink)(nil)
	_ Sink      = (*OtoSink)(nil)
)
