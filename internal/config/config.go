// Package config loads and validates the bot configuration and its data file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the bot configuration file.
type Config struct {
	// BotUserID is the chat account the bot posts replies as.
	BotUserID string `yaml:"bot-user-id"`

	// DataFile holds the simple reply commands.
	DataFile string `yaml:"data-file"`

	// Tick is the pause between main loop iterations.
	Tick time.Duration `yaml:"tick"`

	Log     LogConfig     `yaml:"log"`
	Chat    ChatConfig    `yaml:"chat"`
	Radio   RadioConfig   `yaml:"radio"`
	Media   MediaConfig   `yaml:"media"`
	Editor  EditorConfig  `yaml:"editor"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// ChatConfig selects and configures the chat transport
type ChatConfig struct {
	// Transport is "twitch" or "socket".
	Transport string `yaml:"transport"`

	// SocketPath is the unix socket for the socket transport.
	SocketPath string `yaml:"socket-path"`

	Twitch TwitchConfig `yaml:"twitch"`
}

// TwitchConfig contains Twitch EventSub settings. Secrets come from the
// environment, not from this file.
type TwitchConfig struct {
	BroadcasterUserID string `yaml:"broadcaster-user-id"`
	EventSubURL       string `yaml:"eventsub-url"`
	HelixURL          string `yaml:"helix-url"`
}

// RadioConfig contains the radio settings. It is immutable once loaded.
type RadioConfig struct {
	// Playlist is the remote playlist synced into PlaylistPath at startup.
	Playlist string `yaml:"playlist"`

	PlaylistPath  string `yaml:"playlist-path"`
	RequestedPath string `yaml:"requested-path"`

	// HistoryLen is how many recently played songs random selection avoids.
	HistoryLen int `yaml:"playlist-blacklist-previous-songs-len"`

	AudioFormat    string `yaml:"audio-format"`
	AudioFormatExt string `yaml:"audio-format-ext"`

	// Volume level 0.0 - 1.0
	Volume float64 `yaml:"volume"`

	// SkipRoles restricts !skip to chatters carrying one of these badges.
	// Empty means everyone may skip.
	SkipRoles []string `yaml:"skip-roles"`

	// RequestReply is sent after a successful request when non-empty.
	// "{url}" and "{chatter}" are substituted.
	RequestReply string `yaml:"request-reply"`

	// RememberHistory persists the played list across restarts.
	RememberHistory bool `yaml:"remember-history"`
}

// MediaConfig contains OS media session settings
type MediaConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// EditorConfig contains the editor theme server settings
type EditorConfig struct {
	// Listen is the TCP address editor plugins connect to. Empty disables
	// the theme commands.
	Listen string `yaml:"listen"`
}

// MetricsConfig contains the metrics endpoint settings
type MetricsConfig struct {
	// Listen is the HTTP address for /metrics and /healthz. Empty disables it.
	Listen string `yaml:"listen"`
}

// audioFormats maps supported yt-dlp codecs to the extension they produce.
var audioFormats = map[string]string{
	"vorbis": "ogg",
	"mp3":    "mp3",
	"wav":    "wav",
	"flac":   "flac",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataFile: "data.yaml",
		Tick:     time.Millisecond,
		Log: LogConfig{
			Level: "info",
		},
		Chat: ChatConfig{
			Transport:  "twitch",
			SocketPath: filepath.Join(os.TempDir(), fmt.Sprintf("radiobot-%d.sock", os.Getuid())),
			Twitch: TwitchConfig{
				EventSubURL: "wss://eventsub.wss.twitch.tv/ws",
				HelixURL:    "https://api.twitch.tv/helix",
			},
		},
		Radio: RadioConfig{
			PlaylistPath:   "playlist",
			RequestedPath:  "requested",
			HistoryLen:     5,
			AudioFormat:    "vorbis",
			AudioFormatExt: "ogg",
			Volume:         0.25,
		},
		Media: MediaConfig{
			Enabled: true,
			Name:    "radiobot",
		},
		Editor: EditorConfig{
			Listen: "127.0.0.1:24694",
		},
	}
}

// Load reads the configuration from path, applying defaults for missing
// fields, then validates it.
func Load(path string) (*Config, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	defer fd.Close()

	cfg := DefaultConfig() // Start with defaults
	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	if err := d.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Relative paths are relative to the config file
	dir := filepath.Dir(path)
	cfg.DataFile = resolve(dir, cfg.DataFile)
	cfg.Radio.PlaylistPath = resolve(dir, cfg.Radio.PlaylistPath)
	cfg.Radio.RequestedPath = resolve(dir, cfg.Radio.RequestedPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Validate checks the configuration. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Tick <= 0 {
		errs = append(errs, errors.New("config: `tick` must be positive"))
	}

	switch c.Chat.Transport {
	case "twitch":
		if c.BotUserID == "" {
			errs = append(errs, errors.New("config: `bot-user-id` is required for the twitch transport"))
		}
		if c.Chat.Twitch.BroadcasterUserID == "" {
			errs = append(errs, errors.New("config: `chat.twitch.broadcaster-user-id` is required"))
		}
	case "socket":
		if c.Chat.SocketPath == "" {
			errs = append(errs, errors.New("config: `chat.socket-path` is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown chat transport %q", c.Chat.Transport))
	}

	r := c.Radio
	if r.PlaylistPath == "" {
		errs = append(errs, errors.New("config: `radio.playlist-path` is required"))
	}
	if r.RequestedPath == "" {
		errs = append(errs, errors.New("config: `radio.requested-path` is required"))
	}
	if r.HistoryLen < 0 {
		errs = append(errs, errors.New("config: `radio.playlist-blacklist-previous-songs-len` must not be negative"))
	}
	if ext, ok := audioFormats[r.AudioFormat]; !ok {
		errs = append(errs, fmt.Errorf("config: unsupported `radio.audio-format` %q", r.AudioFormat))
	} else if strings.TrimPrefix(r.AudioFormatExt, ".") != ext {
		errs = append(errs, fmt.Errorf("config: `radio.audio-format-ext` %q does not match audio format %q (want %q)", r.AudioFormatExt, r.AudioFormat, ext))
	}
	if r.Volume < 0 || r.Volume > 1 {
		errs = append(errs, errors.New("config: `radio.volume` must be between 0.0 and 1.0"))
	}

	if c.Media.Enabled && c.Media.Name == "" {
		errs = append(errs, errors.New("config: `media.name` is required when media is enabled"))
	}

	return errors.Join(errs...)
}

// EnsureDirs creates the radio directories if they do not exist yet.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Radio.PlaylistPath, c.Radio.RequestedPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
