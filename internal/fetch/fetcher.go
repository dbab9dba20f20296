// Package fetch makes songs available as local audio files by driving an
// external downloader and tracking what it already fetched.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/metrics"
	"github.com/chatradio/radiobot/internal/song"
)

// FetchError reports a song that could not be made available locally.
type FetchError struct {
	Song song.Identity
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Song, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads songs into directories, one ledger per directory.
type Fetcher struct {
	dl          Downloader
	audioFormat string
	ext         string
	logger      zerolog.Logger

	mu      sync.Mutex
	ledgers map[string]*Ledger
}

// New creates a fetcher producing files in audioFormat with extension ext.
func New(dl Downloader, audioFormat, ext string) *Fetcher {
	return &Fetcher{
		dl:          dl,
		audioFormat: audioFormat,
		ext:         ext,
		logger:      log.WithComponent("fetch"),
		ledgers:     make(map[string]*Ledger),
	}
}

// Ext returns the extension of fetched files.
func (f *Fetcher) Ext() string {
	return f.ext
}

// Ledger returns the ledger for dir, loading it on first use.
func (f *Fetcher) Ledger(dir string) (*Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.ledgers[dir]; ok {
		return l, nil
	}
	l, err := OpenLedger(dir)
	if err != nil {
		return nil, err
	}
	f.ledgers[dir] = l
	return l, nil
}

// EnsureLocal returns the path of id's audio file in dir, downloading it
// first unless the ledger already records it and the file is present.
// It blocks for the whole download.
func (f *Fetcher) EnsureLocal(ctx context.Context, id song.Identity, dir string) (string, error) {
	path := filepath.Join(dir, id.Filename(f.ext))

	ledger, err := f.Ledger(dir)
	if err != nil {
		metrics.IncFetch("failed")
		return "", &FetchError{Song: id, Err: err}
	}

	if ledger.Has(id) {
		if fileExists(path) {
			f.logger.Debug().Str("song", id.String()).Msg("ledger hit, skipping download")
			metrics.IncFetch("ledger_hit")
			return path, nil
		}
		// The downloader skips archived ids, so a stale line would block
		// the song forever.
		f.logger.Warn().Str("song", id.String()).Str("path", path).Msg("archived song missing on disk, forgetting it")
		if err := ledger.Remove(id); err != nil {
			metrics.IncFetch("failed")
			return "", &FetchError{Song: id, Err: err}
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		metrics.IncFetch("failed")
		return "", &FetchError{Song: id, Err: err}
	}

	f.logger.Info().Str("song", id.String()).Str("dir", dir).Msg("downloading")
	err = f.dl.Download(ctx, Request{
		URL:         id.URL(),
		Dir:         dir,
		Archive:     ledger.Path(),
		AudioFormat: f.audioFormat,
	})
	if err != nil {
		metrics.IncFetch("failed")
		return "", &FetchError{Song: id, Err: err}
	}
	if !fileExists(path) {
		metrics.IncFetch("failed")
		return "", &FetchError{Song: id, Err: fmt.Errorf("downloader produced no file at %s", path)}
	}

	if err := ledger.Reload(); err != nil {
		f.logger.Warn().Err(err).Msg("failed to reload archive")
	}
	if err := ledger.Append(id); err != nil {
		f.logger.Warn().Err(err).Str("song", id.String()).Msg("failed to record download")
	}

	metrics.IncFetch("downloaded")
	return path, nil
}

// SyncPlaylist downloads every playlist entry missing from dir. A
// non-zero exit is only logged since some playlist entries routinely fail;
// an error is returned when the downloader could not run at all.
func (f *Fetcher) SyncPlaylist(ctx context.Context, playlist, dir string) error {
	if playlist == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create playlist dir: %w", err)
	}

	ledger, err := f.Ledger(dir)
	if err != nil {
		return err
	}

	f.logger.Info().Str("playlist", playlist).Str("dir", dir).Msg("syncing playlist")
	err = f.dl.Download(ctx, Request{
		URL:         playlist,
		Dir:         dir,
		Archive:     ledger.Path(),
		AudioFormat: f.audioFormat,
		Playlist:    true,
	})

	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		f.logger.Warn().Int("code", exitErr.Code).Msg("playlist sync finished with errors")
	case err != nil:
		return fmt.Errorf("playlist sync: %w", err)
	}

	if err := ledger.Reload(); err != nil {
		return err
	}
	f.logger.Info().Int("songs", ledger.Len()).Msg("playlist synced")
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
