// Package audio implements the engine's sound subsystem: a command queue that
// serialises playback requests from any goroutine, an asset cache with a single
// loader goroutine, and the playback engine holding pooled effect channels and
// the two streamed music slots.
package audio

import "fmt"

// LoadingSoundURL is the reserved URL of the loading-indicator sound. Commands
// addressed to it are routed to the loading slot instead of the effect pool.
const LoadingSoundURL = "loadingsound"

// SourceKind says where the backend should read audio data from.
type SourceKind int

const (
	// SourceFile is a path on the local file system.
	SourceFile SourceKind = iota
	// SourceBundle is an entry in the packaged asset bundle.
	SourceBundle
)

// String returns "file" or "bundle".
func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceBundle:
		return "bundle"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// Source identifies audio data for the backend.
type Source struct {
	Kind SourceKind
	Path string
}

// String formats the source as kind:path.
func (s Source) String() string {
	return s.Kind.String() + ":" + s.Path
}

// EffectHandle identifies a decoded short effect held by the backend.
type EffectHandle int

// ChannelID identifies a pooled playback channel.
type ChannelID int

// StreamHandle identifies a streamed single-track player.
type StreamHandle int

// Resolver maps a URL to a local file, if one has been downloaded or cached.
// ok is false when the asset is only available from the packaged bundle.
type Resolver interface {
	Resolve(url string) (path string, ok bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(url string) (string, bool)

// Resolve calls f(url).
func (f ResolverFunc) Resolve(url string) (string, bool) { return f(url) }

// Backend is the platform's low-level playback surface.
//
// Effects are decoded up front and played on pooled channels. Streams are
// long-lived players for music. Methods taking an unknown handle are no-ops.
type Backend interface {
	LoadEffect(src Source) (EffectHandle, error)
	UnloadEffect(h EffectHandle)
	PlayChannel(h EffectHandle, volume float64, loop bool) (ChannelID, error)
	StopChannel(ch ChannelID)
	PauseChannel(ch ChannelID)
	ResumeChannel(ch ChannelID)
	SetChannelVolume(ch ChannelID, volume float64)

	PrepareStream(src Source) (StreamHandle, error)
	PlayStream(p StreamHandle) error
	PauseStream(p StreamHandle)
	StopStream(p StreamHandle)
	ReleaseStream(p StreamHandle)
	SetStreamVolume(p StreamHandle, volume float64)
	SetStreamLooping(p StreamHandle, loop bool)
}

// EventSink receives asynchronous load results.
type EventSink interface {
	AssetLoaded(url string)
	AssetLoadFailed(url string)
}

// bundlePrefix is where packaged assets live inside the bundle.
const bundlePrefix = "resources/"

// rawPrefix holds fixed-name resources such as the loading sound.
const rawPrefix = "raw/"

// locate picks the source for url: a resolved local file when the resolver
// knows one, the packaged bundle otherwise.
func locate(r Resolver, url string) Source {
	if r != nil {
		if path, ok := r.Resolve(url); ok && path != "" {
			return Source{Kind: SourceFile, Path: path}
		}
	}
	return Source{Kind: SourceBundle, Path: bundlePrefix + url}
}

// rawSource returns the bundle source of a fixed-name resource.
func rawSource(name string) Source {
	return Source{Kind: SourceBundle, Path: rawPrefix + name}
}
