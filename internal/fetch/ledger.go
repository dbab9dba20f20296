package fetch

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/chatradio/radiobot/internal/song"
)

// ArchiveFile is the name of the download ledger inside a fetch directory.
const ArchiveFile = "archive.txt"

// Ledger mirrors a yt-dlp download archive: one "<extractor> <id>" line
// per song already downloaded into the directory.
type Ledger struct {
	mu   sync.Mutex
	path string
	keys map[string]struct{}
}

// OpenLedger loads the archive in dir. A missing archive is an empty ledger.
func OpenLedger(dir string) (*Ledger, error) {
	l := &Ledger{path: filepath.Join(dir, ArchiveFile)}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the archive file path.
func (l *Ledger) Path() string {
	return l.path
}

// Has reports whether id is recorded.
func (l *Ledger) Has(id song.Identity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[id.ArchiveKey()]
	return ok
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Reload re-reads the archive from disk. The downloader appends to the
// same file, so this picks up whatever it recorded.
func (l *Ledger) Reload() error {
	keys := make(map[string]struct{})

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.mu.Lock()
			l.keys = keys
			l.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		keys[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	l.mu.Lock()
	l.keys = keys
	l.mu.Unlock()
	return nil
}

// Append records id. Recording an id twice is a no-op.
func (l *Ledger) Append(id song.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := id.ArchiveKey()
	if _, ok := l.keys[key]; ok {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	if _, err := fmt.Fprintln(f, key); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	l.keys[key] = struct{}{}
	return nil
}

// Remove drops id from the archive so the downloader fetches it again.
// The archive is rewritten atomically with the other lines in order.
func (l *Ledger) Remove(id song.Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := id.ArchiveKey()
	if _, ok := l.keys[key]; !ok {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	var kept strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == key {
			continue
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}
	if err := renameio.WriteFile(l.path, []byte(kept.String()), 0644); err != nil {
		return fmt.Errorf("failed to rewrite archive: %w", err)
	}
	delete(l.keys, key)
	return nil
}
