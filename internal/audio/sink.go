// Package audio owns the single audio sink the radio plays through.
package audio

// Sink is an ordered list of decoded tracks feeding one output device.
// The head track plays; when it ends it is dropped and the next starts.
type Sink interface {
	// AppendFile decodes path and queues it behind the loaded tracks.
	AppendFile(path string) error
	Play()
	Pause()
	IsPaused() bool
	// SkipOne drops the track currently playing.
	SkipOne()
	// Empty reports whether no track is loaded.
	Empty() bool
	SetVolume(v float64)
	Close() error
}
