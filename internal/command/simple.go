package command

import (
	"context"
	"strings"
)

// SimpleReply answers a fixed set of command names with a fixed text.
type SimpleReply struct {
	names []string
	reply string
}

// NewSimpleReply answers messages starting with "!<name>" for any of names,
// case-insensitively.
func NewSimpleReply(names []string, reply string) *SimpleReply {
	lowered := make([]string, 0, len(names))
	for _, n := range names {
		lowered = append(lowered, "!"+strings.ToLower(strings.TrimPrefix(n, "!")))
	}
	return &SimpleReply{names: lowered, reply: reply}
}

func (s *SimpleReply) Name() string {
	if len(s.names) == 0 {
		return "simple-reply"
	}
	return strings.TrimPrefix(s.names[0], "!")
}

func (s *SimpleReply) Parse(msg Message) Result {
	text := strings.ToLower(msg.Text)
	for _, n := range s.names {
		if strings.HasPrefix(text, n) {
			return Execute(nil)
		}
	}
	return WrongCommand()
}

func (s *SimpleReply) Execute(ctx context.Context, _ any, msg Message, r Replier) error {
	return r.Reply(ctx, s.reply, msg.ID)
}
