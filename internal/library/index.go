// Package library indexes the songs available locally in the playlist
// directory, the pool random auto-fill draws from.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/chatradio/radiobot/internal/log"
	"github.com/chatradio/radiobot/internal/metrics"
	"github.com/chatradio/radiobot/internal/song"
)

// Index maps identities to files in a single directory. Only files named
// exactly as the downloader names them are indexed.
type Index struct {
	dir    string
	ext    string
	logger zerolog.Logger

	mu    sync.RWMutex
	songs map[song.Identity]string
}

// NewIndex creates an empty index of dir for files with extension ext.
func NewIndex(dir, ext string) *Index {
	return &Index{
		dir:    dir,
		ext:    strings.TrimPrefix(ext, "."),
		logger: log.WithComponent("library"),
		songs:  make(map[song.Identity]string),
	}
}

// Dir returns the indexed directory.
func (x *Index) Dir() string {
	return x.dir
}

// Scan rebuilds the index from the directory contents. Hidden
// subdirectories are skipped.
func (x *Index) Scan(ctx context.Context) error {
	info, err := os.Stat(x.dir)
	if err != nil {
		return fmt.Errorf("failed to stat library dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("library path %s is not a directory", x.dir)
	}

	songs := make(map[song.Identity]string)
	err = filepath.WalkDir(x.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != x.dir {
				return filepath.SkipDir
			}
			return nil
		}

		if id, ok := x.match(d.Name()); ok {
			songs[id] = path
		}
		return nil
	})
	if err != nil {
		return err
	}

	x.mu.Lock()
	x.songs = songs
	x.mu.Unlock()

	metrics.LibrarySize.Set(float64(len(songs)))
	x.logger.Info().Int("songs", len(songs)).Str("dir", x.dir).Msg("library scanned")
	return nil
}

// Watch keeps the index current with files created, renamed or removed in
// the directory. It blocks until ctx is done.
func (x *Index) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(x.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", x.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			x.apply(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				x.logger.Warn().Msg("watch overflow, rescanning")
				if err := x.Scan(ctx); err != nil {
					x.logger.Error().Err(err).Msg("rescan failed")
				}
				continue
			}
			x.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (x *Index) apply(event fsnotify.Event) {
	id, ok := x.match(filepath.Base(event.Name))
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return
		}
		x.Add(id, event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		x.Remove(id)
	}
}

// Add records id as available at path.
func (x *Index) Add(id song.Identity, path string) {
	x.mu.Lock()
	_, existed := x.songs[id]
	x.songs[id] = path
	n := len(x.songs)
	x.mu.Unlock()

	if !existed {
		metrics.LibrarySize.Set(float64(n))
		x.logger.Debug().Str("song", id.String()).Msg("song added")
	}
}

// Remove forgets id.
func (x *Index) Remove(id song.Identity) {
	x.mu.Lock()
	_, existed := x.songs[id]
	delete(x.songs, id)
	n := len(x.songs)
	x.mu.Unlock()

	if existed {
		metrics.LibrarySize.Set(float64(n))
		x.logger.Debug().Str("song", id.String()).Msg("song removed")
	}
}

// Path returns the file backing id.
func (x *Index) Path(id song.Identity) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.songs[id]
	return p, ok
}

// Len returns the number of indexed songs.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.songs)
}

// Candidates returns every indexed identity in a stable order.
func (x *Index) Candidates() []song.Identity {
	x.mu.RLock()
	ids := lo.Keys(x.songs)
	x.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

func (x *Index) match(name string) (song.Identity, bool) {
	id, ok := song.FromFilename(name)
	if !ok || id.Filename(x.ext) != name {
		return song.Identity{}, false
	}
	return id, true
}
