package fetch

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/lrstanley/go-ytdlp"
)

// OutputTemplate names downloads "<extractor>-<id>.<ext>", the shape
// song.FromFilename reads back.
const OutputTemplate = "%(extractor)s-%(id)s.%(ext)s"

// Request describes one downloader invocation.
type Request struct {
	URL         string
	Dir         string // --paths
	Archive     string // --download-archive
	AudioFormat string // --audio-format
	Playlist    bool   // allow playlist expansion
}

// ExitError reports a downloader run that started but exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("downloader exited with code %d", e.Code)
}

// Downloader runs the external audio downloader.
type Downloader interface {
	Download(ctx context.Context, req Request) error
}

// YtDlp drives the yt-dlp binary.
type YtDlp struct{}

// NewYtDlp returns a downloader backed by the yt-dlp found on PATH.
func NewYtDlp() *YtDlp {
	return &YtDlp{}
}

// Download runs yt-dlp with audio extraction into req.Dir.
func (y *YtDlp) Download(ctx context.Context, req Request) error {
	cmd := ytdlp.New().
		ExtractAudio().
		AudioFormat(req.AudioFormat).
		Output(OutputTemplate).
		Paths(req.Dir).
		DownloadArchive(req.Archive).
		IgnoreConfig().
		NoWarnings()
	if !req.Playlist {
		cmd = cmd.NoPlaylist()
	}

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		if res != nil && res.ExitCode != 0 {
			return &ExitError{Code: res.ExitCode, Stderr: res.Stderr}
		}
		return err
	}
	return nil
}

// CheckDownloader verifies the binaries the downloader depends on are
// installed.
func CheckDownloader() error {
	for _, bin := range []string{"yt-dlp", "ffmpeg"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found on PATH: %w", bin, err)
		}
	}
	return nil
}
