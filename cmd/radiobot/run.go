package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/audio"
	"github.com/chatradio/radiobot/internal/bot"
	"github.com/chatradio/radiobot/internal/chat"
	"github.com/chatradio/radiobot/internal/command"
	"github.com/chatradio/radiobot/internal/config"
	"github.com/chatradio/radiobot/internal/editor"
	"github.com/chatradio/radiobot/internal/fetch"
	"github.com/chatradio/radiobot/internal/library"
	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/media"
	"github.com/chatradio/radiobot/internal/metrics"
	"github.com/chatradio/radiobot/internal/queue"
	"github.com/chatradio/radiobot/internal/radio"
)

// Params are the command line flags.
type Params struct {
	Config   string `short:"c" optional:"true" help:"Path to the configuration file." default:"config.yaml"`
	LogLevel string `optional:"true" help:"Log level (trace, debug, info, warn, error). Overrides the config file."`
}

func run(ctx context.Context, params *Params) error {
	cfg, err := config.Load(params.Config)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if params.LogLevel != "" {
		level = params.LogLevel
	}
	log.Configure(log.Config{Level: level})
	logger := log.WithComponent("main")

	data, err := config.LoadData(cfg.DataFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	if err := fetch.CheckDownloader(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := audio.NewOtoSink()
	if err != nil {
		return fmt.Errorf("failed to initialize audio output: %w", err)
	}
	defer sink.Close()
	sink.SetVolume(cfg.Radio.Volume)

	session := newSession(cfg.Media, logger)
	defer session.Close()
	events := media.NewEventQueue(media.DefaultEventBuffer)
	session.SetCommandHandler(events)

	index := library.NewIndex(cfg.Radio.PlaylistPath, cfg.Radio.AudioFormatExt)
	fetcher := fetch.New(fetch.NewYtDlp(), cfg.Radio.AudioFormat, cfg.Radio.AudioFormatExt)

	var store *queue.Store
	if cfg.Radio.RememberHistory {
		store = queue.NewStore(filepath.Dir(cfg.DataFile))
	}

	logger.Info().Str("playlist", cfg.Radio.Playlist).Msg("syncing playlist")
	engine, err := radio.New(ctx, cfg.Radio, radio.Deps{
		Sink:    sink,
		Fetcher: fetcher,
		Library: index,
		Events:  events,
		Session: session,
		Store:   store,
	})
	if err != nil {
		return fmt.Errorf("failed to start radio: %w", err)
	}

	registry := command.NewRegistry(engine)
	for _, rc := range data.SimpleReplyCommands {
		registry.Add(command.NewSimpleReply(rc.Names, rc.Reply))
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}

	services := []bot.Service{{Name: "library", Run: index.Watch}}
	if cfg.Editor.Listen != "" {
		themes, err := editor.Listen(cfg.Editor.Listen)
		if err != nil {
			return err
		}
		defer themes.Close()
		registry.Add(themes)
		services = append(services, bot.Service{Name: "editor", Run: themes.Serve})
	}
	if cfg.Metrics.Listen != "" {
		srv, err := metrics.Listen(cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		services = append(services, bot.Service{Name: "metrics", Run: srv.Serve})
	}

	err = bot.New(transport, registry, cfg.Tick, services...).Run(ctx)
	logger.Info().Msg("shutting down")
	return err
}

// newSession registers the OS media session. Media keys are optional, so
// any failure falls back to a session that ignores updates.
func newSession(cfg config.MediaConfig, logger zerolog.Logger) media.Session {
	if !cfg.Enabled {
		return media.NewNoOpSession()
	}
	session, err := media.NewSession(cfg.Name)
	if err != nil {
		logger.Warn().Err(err).Msg("media session unavailable, continuing without media keys")
		return media.NewNoOpSession()
	}
	logger.Info().Str("name", cfg.Name).Msg("media session registered")
	return session
}

func newTransport(cfg *config.Config) (chat.Transport, error) {
	switch cfg.Chat.Transport {
	case "socket":
		return chat.NewSocketTransport(cfg.Chat.SocketPath), nil
	case "twitch":
		clientID, token, err := chat.CredentialsFromEnv()
		if err != nil {
			return nil, err
		}
		return chat.NewTwitchTransport(chat.TwitchConfig{
			BroadcasterUserID: cfg.Chat.Twitch.BroadcasterUserID,
			BotUserID:         cfg.BotUserID,
			EventSubURL:       cfg.Chat.Twitch.EventSubURL,
			HelixURL:          cfg.Chat.Twitch.HelixURL,
			ClientID:          clientID,
			AccessToken:       token,
		}), nil
	default:
		return nil, fmt.Errorf("unknown chat transport %q", cfg.Chat.Transport)
	}
}
