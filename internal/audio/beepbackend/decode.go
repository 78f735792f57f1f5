package beepbackend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/zjrosen/chime/internal/audio"
)

// Format is a container format the backend can decode.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatVorbis  Format = "vorbis"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
)

// sniffLen is enough header bytes to tell every supported format apart.
const sniffLen = 12

// Sniff identifies the container format from the first bytes of a file.
func Sniff(header []byte) Format {
	switch {
	case len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(header, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(header, []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// formatFromExt is the fallback when sniffing is inconclusive.
func formatFromExt(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".ogg", ".oga":
		return FormatVorbis
	case ".mp3":
		return FormatMP3
	case ".flac":
		return FormatFLAC
	default:
		return FormatUnknown
	}
}

type readSeekCloser struct {
	io.ReadSeeker
	io.Closer
}

// openReader opens src from disk or the bundle. A missing file, or a name the
// bundle cannot hold, is ErrResolve.
func (b *Backend) openReader(src audio.Source) (io.ReadSeekCloser, error) {
	var (
		f   io.ReadCloser
		err error
	)
	switch src.Kind {
	case audio.SourceFile:
		f, err = os.Open(src.Path)
	case audio.SourceBundle:
		if b.bundle == nil {
			return nil, fmt.Errorf("%w: no bundle for %s", audio.ErrResolve, src.Path)
		}
		f, err = b.bundle.Open(src.Path)
	default:
		return nil, fmt.Errorf("%w: unknown source %s", audio.ErrResolve, src)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, fmt.Errorf("%w: %s", audio.ErrResolve, src)
		}
		return nil, fmt.Errorf("open %s: %w", src, err)
	}

	if rs, ok := f.(io.ReadSeeker); ok {
		return readSeekCloser{ReadSeeker: rs, Closer: f}, nil
	}

	// Decoders need to seek; buffer readers that cannot.
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return readSeekCloser{ReadSeeker: bytes.NewReader(data), Closer: io.NopCloser(nil)}, nil
}

// open decodes src. The returned streamer owns the underlying reader.
func (b *Backend) open(src audio.Source) (beep.StreamSeekCloser, beep.Format, error) {
	r, err := b.openReader(src)
	if err != nil {
		return nil, beep.Format{}, err
	}

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = r.Close()
		return nil, beep.Format{}, fmt.Errorf("read header %s: %w", src, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		_ = r.Close()
		return nil, beep.Format{}, fmt.Errorf("rewind %s: %w", src, err)
	}

	kind := Sniff(header[:n])
	if kind == FormatUnknown {
		kind = formatFromExt(src.Path)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch kind {
	case FormatWAV:
		s, format, err = wav.Decode(r)
	case FormatVorbis:
		s, format, err = vorbis.Decode(r)
	case FormatMP3:
		s, format, err = mp3.Decode(r)
	case FormatFLAC:
		s, format, err = flac.Decode(r)
	default:
		_ = r.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: unrecognised format %s", audio.ErrDecode, src)
	}
	if err != nil {
		_ = r.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %s %s: %v", audio.ErrDecode, kind, src, err)
	}
	return s, format, nil
}
