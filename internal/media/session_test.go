package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventFor(t *testing.T) {
	tests := []struct {
		cmd  Command
		want Event
	}{
		{CmdPlayPause, EventTogglePlayPause},
		{CmdNext, EventNext},
		{CmdPrevious, EventPrevious},
		{CmdPlay, EventPlay},
		{CmdPause, EventPause},
		{CmdStop, EventOther},
		{CmdSeek, EventOther},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, EventFor(tt.cmd))
		})
	}
}

func TestEventQueuePollEmpty(t *testing.T) {
	q := NewEventQueue(2)
	_, ok := q.Poll()
	assert.False(t, ok)
}

func TestEventQueueOrderAndDrop(t *testing.T) {
	q := NewEventQueue(2)

	assert.NoError(t, q.OnCommand(CmdNext, nil))
	assert.NoError(t, q.OnCommand(CmdPlayPause, nil))
	// Full: dropped without blocking.
	assert.NoError(t, q.OnCommand(CmdPrevious, nil))

	ev, ok := q.Poll()
	assert.True(t, ok)
	assert.Equal(t, EventNext, ev)

	ev, ok = q.Poll()
	assert.True(t, ok)
	assert.Equal(t, EventTogglePlayPause, ev)

	_, ok = q.Poll()
	assert.False(t, ok)
}

func TestEventQueueMinimumSize(t *testing.T) {
	q := NewEventQueue(0)
	assert.NoError(t, q.OnCommand(CmdNext, nil))
	_, ok := q.Poll()
	assert.True(t, ok)
}

func TestNoOpSession(t *testing.T) {
	var s Session = NewNoOpSession()
	s.SetCommandHandler(NewEventQueue(1))
	assert.NoError(t, s.UpdateMetadata(Metadata{Title: "x"}))
	assert.NoError(t, s.UpdatePlaybackState(StatePlaying))
	assert.NoError(t, s.Close())
}
