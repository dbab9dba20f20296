// Package song defines the platform-tagged identity of a requestable track
// and its codecs to and from remote URLs and local filenames.
package song

import (
	"fmt"
	"net/url"
	"strings"
)

// Platform tags the source an identity belongs to.
type Platform string

const (
	YouTube Platform = "youtube"
)

const youtubeIDChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// Identity is a validated reference to a track on a source platform.
// The zero value is not a valid identity; build one with NewYouTube,
// ParseURL or FromFilename. Identities are comparable with ==.
type Identity struct {
	platform Platform
	id       string
}

// BadRequestError reports user input that cannot become an Identity.
// The message is safe to send back to chat.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

func badRequest(reason string) error {
	return &BadRequestError{Reason: reason}
}

// NewYouTube validates id against YouTube's video id alphabet.
func NewYouTube(id string) (Identity, error) {
	if id == "" {
		return Identity{}, badRequest("Invalid YouTube ID")
	}
	for _, c := range id {
		if !strings.ContainsRune(youtubeIDChars, c) {
			return Identity{}, badRequest("Invalid YouTube ID")
		}
	}
	return Identity{platform: YouTube, id: id}, nil
}

// Platform returns the platform tag.
func (s Identity) Platform() Platform {
	return s.platform
}

// ID returns the platform-specific id.
func (s Identity) ID() string {
	return s.id
}

// IsZero reports whether s was never constructed.
func (s Identity) IsZero() bool {
	return s.platform == ""
}

// String returns "<platform> <id>".
func (s Identity) String() string {
	return s.ArchiveKey()
}

// ArchiveKey is the line yt-dlp writes to a download archive for s.
func (s Identity) ArchiveKey() string {
	return fmt.Sprintf("%s %s", s.platform, s.id)
}

// URL returns the canonical remote URL. ParseURL(s.URL()) == s.
func (s Identity) URL() string {
	switch s.platform {
	case YouTube:
		return "https://www.youtube.com/watch?v=" + s.id
	}
	return ""
}

// Filename returns the local filename for s with the given extension,
// matching the downloader template "%(extractor)s-%(id)s.%(ext)s".
func (s Identity) Filename(ext string) string {
	name := fmt.Sprintf("%s-%s", s.platform, s.id)
	if ext == "" {
		return name
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}

// FromFilename recovers an identity from a filename produced by Filename.
// Directory components are not accepted.
func FromFilename(name string) (Identity, bool) {
	tag, rest, ok := strings.Cut(name, "-")
	if !ok {
		return Identity{}, false
	}
	id, _, _ := strings.Cut(rest, ".")
	switch Platform(tag) {
	case YouTube:
		s, err := NewYouTube(id)
		if err != nil {
			return Identity{}, false
		}
		return s, true
	}
	return Identity{}, false
}

// ParseURL recognises supported platform URLs and extracts a validated
// identity. Errors are *BadRequestError.
func ParseURL(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, badRequest("Must include URL")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Identity{}, badRequest("Invalid URL")
	}

	switch strings.ToLower(u.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		return parseYouTubeLong(u)
	case "youtu.be":
		id, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if id == "" {
			return Identity{}, badRequest("Could not extract YouTube video ID from URL")
		}
		return NewYouTube(id)
	}
	return Identity{}, badRequest("Unsupported platform")
}

func parseYouTubeLong(u *url.URL) (Identity, error) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case segments[0] == "watch":
		id := u.Query().Get("v")
		if id == "" {
			return Identity{}, badRequest("Could not extract YouTube video ID from URL")
		}
		return NewYouTube(id)
	case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "live"):
		return NewYouTube(segments[1])
	}
	return Identity{}, badRequest("Could not extract YouTube video ID from URL")
}

// ParseArchiveKey parses a download archive line produced by ArchiveKey.
func ParseArchiveKey(line string) (Identity, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Identity{}, false
	}
	switch Platform(fields[0]) {
	case YouTube:
		s, err := NewYouTube(fields[1])
		if err != nil {
			return Identity{}, false
		}
		return s, true
	}
	return Identity{}, false
}
