package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned for files with an extension no decoder
// handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// SupportedExtensions are the file extensions Decode understands
var SupportedExtensions = map[string]bool{
	".ogg":  true,
	".mp3":  true,
	".wav":  true,
	".flac": true,
}

// Decoded is an open, decoded audio file.
type Decoded struct {
	Stream beep.StreamSeekCloser
	Format beep.Format
	file   *os.File
}

// Close releases the stream and the underlying file.
func (d *Decoded) Close() error {
	err := d.Stream.Close()
	if d.file != nil {
		d.file.Close()
	}
	return err
}

// Decode opens path and picks a decoder by extension.
func Decode(path string) (*Decoded, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case ".ogg":
		stream, format, err = vorbis.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	return &Decoded{Stream: stream, Format: format, file: f}, nil
}
