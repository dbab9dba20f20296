// Package command defines the contract chat command handlers implement
// and the registry that fans messages out to them.
package command

import (
	"context"
	"slices"
	"strings"
)

// Chatter identifies the author of a message.
type Chatter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is one chat message.
type Message struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Chatter Chatter  `json:"chatter"`
	Badges  []string `json:"badges,omitempty"`
}

// Command returns the first whitespace-separated token, lower-cased.
func (m Message) Command() string {
	fields := strings.Fields(m.Text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Args returns everything after the first token.
func (m Message) Args() []string {
	fields := strings.Fields(m.Text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

// HasAnyBadge reports whether the chatter carries one of badges.
func (m Message) HasAnyBadge(badges ...string) bool {
	for _, b := range m.Badges {
		if slices.ContainsFunc(badges, func(want string) bool { return strings.EqualFold(want, b) }) {
			return true
		}
	}
	return false
}

// Replier sends a chat message, threaded under replyTo when it is set.
type Replier interface {
	Reply(ctx context.Context, text, replyTo string) error
}

// ResultKind classifies what a handler made of a message.
type ResultKind int

const (
	KindWrongCommand ResultKind = iota
	KindInsufficientPermissions
	KindBadArguments
	KindExecute
)

func (k ResultKind) String() string {
	switch k {
	case KindWrongCommand:
		return "wrong_command"
	case KindInsufficientPermissions:
		return "insufficient_permissions"
	case KindBadArguments:
		return "bad_arguments"
	case KindExecute:
		return "execute"
	default:
		return "unknown"
	}
}

// Result is the outcome of Parse.
type Result struct {
	Kind    ResultKind
	Message string // user-facing, for KindBadArguments
	Args    any    // for KindExecute
}

// WrongCommand means the message is not for this handler.
func WrongCommand() Result {
	return Result{Kind: KindWrongCommand}
}

// InsufficientPermissions means the chatter may not run the command.
func InsufficientPermissions() Result {
	return Result{Kind: KindInsufficientPermissions}
}

// BadArguments means the command matched but its arguments did not.
// msg is replied to the chatter.
func BadArguments(msg string) Result {
	return Result{Kind: KindBadArguments, Message: msg}
}

// Execute carries parsed arguments to Handler.Execute.
func Execute(args any) Result {
	return Result{Kind: KindExecute, Args: args}
}

// Handler recognises and runs one chat command.
type Handler interface {
	Name() string
	// Parse must not have side effects.
	Parse(msg Message) Result
	Execute(ctx context.Context, args any, msg Message, r Replier) error
}

// Updater is implemented by handlers that need a periodic tick.
type Updater interface {
	Update(ctx context.Context, r Replier) error
}
