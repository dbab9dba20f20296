package song

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  string
		wantErr string
	}{
		{name: "watch url", raw: "https://www.youtube.com/watch?v=abc123XYZ_-", wantID: "abc123XYZ_-"},
		{name: "watch url extra params", raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1&t=42", wantID: "dQw4w9WgXcQ"},
		{name: "bare host", raw: "https://youtube.com/watch?v=dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ"},
		{name: "mobile host", raw: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ"},
		{name: "music host", raw: "https://music.youtube.com/watch?v=dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ"},
		{name: "short link", raw: "https://youtu.be/dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ"},
		{name: "short link with query", raw: "https://youtu.be/dQw4w9WgXcQ?si=xyz", wantID: "dQw4w9WgXcQ"},
		{name: "shorts", raw: "https://www.youtube.com/shorts/dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ"},
		{name: "empty", raw: "", wantErr: "Must include URL"},
		{name: "not a url", raw: "not-a-url", wantErr: "Invalid URL"},
		{name: "ftp scheme", raw: "ftp://www.youtube.com/watch?v=abc", wantErr: "Invalid URL"},
		{name: "other platform", raw: "https://soundcloud.com/artist/track", wantErr: "Unsupported platform"},
		{name: "missing v", raw: "https://www.youtube.com/watch?list=PL1", wantErr: "Could not extract YouTube video ID from URL"},
		{name: "channel page", raw: "https://www.youtube.com/@someone", wantErr: "Could not extract YouTube video ID from URL"},
		{name: "empty short link", raw: "https://youtu.be/", wantErr: "Could not extract YouTube video ID from URL"},
		{name: "bad charset", raw: "https://www.youtube.com/watch?v=abc%20def", wantErr: "Invalid YouTube ID"},
		{name: "slash in id", raw: "https://www.youtube.com/watch?v=abc%2Fdef", wantErr: "Invalid YouTube ID"},
		{name: "question mark in id", raw: "https://www.youtube.com/watch?v=abc%3Fdef", wantErr: "Invalid YouTube ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				var bad *BadRequestError
				require.True(t, errors.As(err, &bad))
				assert.Equal(t, tt.wantErr, bad.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, YouTube, got.Platform())
			assert.Equal(t, tt.wantID, got.ID())
		})
	}
}

func TestNewYouTubeRejectsDisallowedCharacters(t *testing.T) {
	for _, id := range []string{"", "has space", "a/b", "a?b", "a.b", "ünï"} {
		_, err := NewYouTube(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestURLRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"https://www.youtube.com/watch?v=abc123XYZ_-",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=-_-_-",
	} {
		s, err := ParseURL(raw)
		require.NoError(t, err)

		again, err := ParseURL(s.URL())
		require.NoError(t, err)
		assert.Equal(t, s, again)
	}
}

func TestFilenameRoundTrip(t *testing.T) {
	s, err := NewYouTube("a-b_c-123")
	require.NoError(t, err)

	name := s.Filename("ogg")
	assert.Equal(t, "youtube-a-b_c-123.ogg", name)

	got, ok := FromFilename(name)
	require.True(t, ok)
	assert.Equal(t, s, got)

	got, ok = FromFilename(s.Filename(""))
	require.True(t, ok)
	assert.Equal(t, s, got)
}

func TestFromFilenameRejectsUnknown(t *testing.T) {
	for _, name := range []string{"archive.txt", "soundcloud-123.ogg", "youtube-.ogg", "youtube-bad id.ogg", "cover.jpg"} {
		_, ok := FromFilename(name)
		assert.False(t, ok, "name %q", name)
	}
}

func TestArchiveKey(t *testing.T) {
	s, err := NewYouTube("dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "youtube dQw4w9WgXcQ", s.ArchiveKey())
	assert.False(t, s.IsZero())
	assert.True(t, Identity{}.IsZero())
}

func TestParseArchiveKey(t *testing.T) {
	s, err := NewYouTube("dQw4w9WgXcQ")
	require.NoError(t, err)

	got, ok := ParseArchiveKey(s.ArchiveKey())
	require.True(t, ok)
	assert.Equal(t, s, got)

	for _, line := range []string{"", "youtube", "vimeo 123", "youtube a b", "youtube bad/id"} {
		_, ok := ParseArchiveKey(line)
		assert.False(t, ok, "line %q", line)
	}
}
