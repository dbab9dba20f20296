package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/chatradio/radiobot/internal/command"
	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/metrics"
)

const (
	envClientID    = "TWITCH_CLIENT_ID"
	envAccessToken = "TWITCH_ACCESS_TOKEN"

	subscriptionType    = "channel.chat.message"
	subscriptionVersion = "1"

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// TwitchConfig configures the Twitch transport.
type TwitchConfig struct {
	BroadcasterUserID string
	BotUserID         string
	EventSubURL       string
	HelixURL          string
	ClientID          string
	AccessToken       string
	HTTPClient        *http.Client
}

// CredentialsFromEnv reads the client id and user access token.
func CredentialsFromEnv() (clientID, accessToken string, err error) {
	clientID = os.Getenv(envClientID)
	accessToken = os.Getenv(envAccessToken)
	var errs []error
	if clientID == "" {
		errs = append(errs, fmt.Errorf("%s is not set", envClientID))
	}
	if accessToken == "" {
		errs = append(errs, fmt.Errorf("%s is not set", envAccessToken))
	}
	return clientID, strings.TrimPrefix(accessToken, "oauth:"), errors.Join(errs...)
}

// TwitchTransport receives chat through an EventSub websocket and replies
// through the Helix API.
type TwitchTransport struct {
	cfg      TwitchConfig
	http     *http.Client
	messages chan command.Message
	logger   zerolog.Logger

	mu         sync.Mutex
	subscribed bool
}

// NewTwitchTransport creates a Twitch transport.
func NewTwitchTransport(cfg TwitchConfig) *TwitchTransport {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.HelixURL = strings.TrimSuffix(cfg.HelixURL, "/")
	return &TwitchTransport{
		cfg:      cfg,
		http:     client,
		messages: make(chan command.Message, messageBuffer),
		logger:   log.WithComponent("chat").With().Str("transport", "twitch").Logger(),
	}
}

func (t *TwitchTransport) Name() string {
	return "twitch"
}

func (t *TwitchTransport) Messages() <-chan command.Message {
	return t.messages
}

// EventSub websocket frames.
type eventSubFrame struct {
	Metadata struct {
		MessageID        string `json:"message_id"`
		MessageType      string `json:"message_type"`
		SubscriptionType string `json:"subscription_type"`
	} `json:"metadata"`
	Payload json.RawMessage `json:"payload"`
}

type sessionPayload struct {
	Session struct {
		ID                      string `json:"id"`
		KeepaliveTimeoutSeconds int    `json:"keepalive_timeout_seconds"`
		ReconnectURL            string `json:"reconnect_url"`
	} `json:"session"`
}

type notificationPayload struct {
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
	Event chatMessageEvent `json:"event"`
}

type chatMessageEvent struct {
	MessageID       string `json:"message_id"`
	ChatterUserID   string `json:"chatter_user_id"`
	ChatterUserName string `json:"chatter_user_name"`
	Message         struct {
		Text string `json:"text"`
	} `json:"message"`
	Badges []badge `json:"badges"`
}

type badge struct {
	SetID string `json:"set_id"`
}

func (ev chatMessageEvent) toMessage() command.Message {
	return command.Message{
		ID:      ev.MessageID,
		Text:    ev.Message.Text,
		Chatter: command.Chatter{ID: ev.ChatterUserID, Name: ev.ChatterUserName},
		Badges: lo.Map(ev.Badges, func(b badge, _ int) string {
			return b.SetID
		}),
	}
}

// errReconnect asks Run to switch to the URL it carries.
type errReconnect struct {
	url string
}

func (e *errReconnect) Error() string {
	return "eventsub requested reconnect"
}

// Run keeps an EventSub session open until ctx is done, reconnecting with
// backoff when the connection drops.
func (t *TwitchTransport) Run(ctx context.Context) error {
	url := t.cfg.EventSubURL
	backoff := minBackoff

	for {
		err := t.session(ctx, url)
		if ctx.Err() != nil {
			return nil
		}

		var reconnect *errReconnect
		if errors.As(err, &reconnect) {
			// Subscriptions carry over to the new session.
			t.logger.Info().Msg("eventsub reconnect")
			url = reconnect.url
			backoff = minBackoff
			continue
		}

		t.logger.Warn().Err(err).Dur("backoff", backoff).Msg("eventsub connection lost")
		t.mu.Lock()
		t.subscribed = false
		t.mu.Unlock()
		url = t.cfg.EventSubURL

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (t *TwitchTransport) session(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial eventsub: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	defer stop()

	keepalive := 30 * time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(keepalive + 10*time.Second))

		var frame eventSubFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read eventsub: %w", err)
		}

		switch frame.Metadata.MessageType {
		case "session_welcome":
			var p sessionPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				return fmt.Errorf("decode welcome: %w", err)
			}
			if p.Session.KeepaliveTimeoutSeconds > 0 {
				keepalive = time.Duration(p.Session.KeepaliveTimeoutSeconds) * time.Second
			}
			if err := t.subscribeOnce(ctx, p.Session.ID); err != nil {
				return err
			}
			t.logger.Info().Str("session", p.Session.ID).Msg("eventsub session ready")

		case "session_keepalive":

		case "session_reconnect":
			var p sessionPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				return fmt.Errorf("decode reconnect: %w", err)
			}
			return &errReconnect{url: p.Session.ReconnectURL}

		case "notification":
			var p notificationPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				t.logger.Warn().Err(err).Msg("undecodable notification")
				continue
			}
			if p.Subscription.Type != subscriptionType {
				continue
			}
			// The bot's own replies come back on the same subscription.
			if p.Event.ChatterUserID == t.cfg.BotUserID {
				continue
			}
			metrics.ChatMessagesTotal.WithLabelValues(t.Name()).Inc()
			select {
			case t.messages <- p.Event.toMessage():
			case <-ctx.Done():
				return ctx.Err()
			}

		case "revocation":
			t.logger.Error().Str("subscription", frame.Metadata.SubscriptionType).Msg("subscription revoked")

		default:
			t.logger.Debug().Str("type", frame.Metadata.MessageType).Msg("ignoring eventsub frame")
		}
	}
}

func (t *TwitchTransport) subscribeOnce(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	done := t.subscribed
	t.mu.Unlock()
	if done {
		return nil
	}

	body := map[string]any{
		"type":    subscriptionType,
		"version": subscriptionVersion,
		"condition": map[string]string{
			"broadcaster_user_id": t.cfg.BroadcasterUserID,
			"user_id":             t.cfg.BotUserID,
		},
		"transport": map[string]string{
			"method":     "websocket",
			"session_id": sessionID,
		},
	}
	if err := t.helix(ctx, "/eventsub/subscriptions", body, nil); err != nil {
		return fmt.Errorf("subscribe %s: %w", subscriptionType, err)
	}

	t.mu.Lock()
	t.subscribed = true
	t.mu.Unlock()
	return nil
}

type sendMessageResponse struct {
	Data []struct {
		MessageID  string `json:"message_id"`
		IsSent     bool   `json:"is_sent"`
		DropReason *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"drop_reason"`
	} `json:"data"`
}

// Reply implements command.Replier.
func (t *TwitchTransport) Reply(ctx context.Context, text, replyTo string) error {
	body := map[string]string{
		"broadcaster_id": t.cfg.BroadcasterUserID,
		"sender_id":      t.cfg.BotUserID,
		"message":        text,
	}
	if replyTo != "" {
		body["reply_parent_message_id"] = replyTo
	}

	var resp sendMessageResponse
	if err := t.helix(ctx, "/chat/messages", body, &resp); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	if len(resp.Data) > 0 && !resp.Data[0].IsSent {
		if d := resp.Data[0].DropReason; d != nil {
			return fmt.Errorf("chat message dropped: %s: %s", d.Code, d.Message)
		}
		return errors.New("chat message dropped")
	}
	return nil
}

func (t *TwitchTransport) helix(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.HelixURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Id", t.cfg.ClientID)
	req.Header.Set("Authorization", "Bearer "+t.cfg.AccessToken)

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("helix %s: %s: %s", path, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode helix response: %w", err)
		}
	}
	return nil
}

var _ Transport = (*TwitchTransport)(nil)
