package chat

import (
	"encoding/json"
	"fmt"

	"github.com/chatradio/radiobot/internal/command"
)

// Socket frames are newline-delimited JSON.

// Inbound is a chat message written by a socket client.
type Inbound struct {
	ID      string          `json:"id,omitempty"`
	Text    string          `json:"text"`
	Chatter command.Chatter `json:"chatter"`
	Badges  []string        `json:"badges,omitempty"`
}

// OutboundType tags frames sent to socket clients.
type OutboundType string

const (
	OutboundReply OutboundType = "reply"
	OutboundError OutboundType = "error"
)

// Outbound is a frame sent to every socket client.
type Outbound struct {
	Type    OutboundType `json:"type"`
	Text    string       `json:"text,omitempty"`
	ReplyTo string       `json:"replyTo,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// DecodeInbound decodes one inbound frame.
func DecodeInbound(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &in, nil
}

// EncodeOutbound encodes a frame, newline included.
func EncodeOutbound(out *Outbound) ([]byte, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Message converts the frame to a command message.
func (in *Inbound) Message() command.Message {
	return command.Message{
		ID:      in.ID,
		Text:    in.Text,
		Chatter: in.Chatter,
		Badges:  in.Badges,
	}
}
