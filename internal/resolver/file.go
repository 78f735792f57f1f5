// Package resolver maps sound URLs to downloaded copies on the local disk.
package resolver

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/chime/internal/log"
)

// DefaultTTL is how long a lookup result is remembered.
const DefaultTTL = 30 * time.Second

// FileResolver resolves URLs against a directory of downloaded assets.
//
// "https://cdn.example.com/sfx/click.wav" resolves to <root>/cdn.example.com/sfx/click.wav
// and a bare "sfx/click.wav" to <root>/sfx/click.wav. Lookups, including
// misses, are memoised for the TTL.
type FileResolver struct {
	root  string
	memo  bool
	cache *gocache.Cache
	stat  func(string) (os.FileInfo, error)
}

type lookup struct {
	path string
	ok   bool
}

// NewFileResolver creates a resolver rooted at root. A ttl of zero uses
// DefaultTTL; a negative ttl disables memoisation.
func NewFileResolver(root string, ttl time.Duration) *FileResolver {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	memo := ttl > 0
	cleanup := 2 * ttl
	if !memo {
		ttl, cleanup = gocache.NoExpiration, 0
	}
	return &FileResolver{
		root:  root,
		memo:  memo,
		cache: gocache.New(ttl, cleanup),
		stat:  os.Stat,
	}
}

// Root returns the directory the resolver searches.
func (r *FileResolver) Root() string { return r.root }

// Resolve returns the local file for rawURL, if one exists.
func (r *FileResolver) Resolve(rawURL string) (string, bool) {
	if r.root == "" || rawURL == "" {
		return "", false
	}
	if !r.memo {
		l := r.lookup(rawURL)
		return l.path, l.ok
	}
	if hit, found := r.cache.Get(rawURL); found {
		l := hit.(lookup)
		return l.path, l.ok
	}

	l := r.lookup(rawURL)
	r.cache.SetDefault(rawURL, l)
	return l.path, l.ok
}

func (r *FileResolver) lookup(rawURL string) lookup {
	rel, ok := RelPath(rawURL)
	if !ok {
		log.Debug(log.CatResolver, "Rejected sound URL", "url", rawURL)
		return lookup{}
	}
	full := filepath.Join(r.root, filepath.FromSlash(rel))
	info, err := r.stat(full)
	if err != nil || info.IsDir() {
		return lookup{}
	}
	log.Debug(log.CatResolver, "Resolved sound to local file", "url", rawURL, "path", full)
	return lookup{path: full, ok: true}
}

// Invalidate forgets every memoised lookup.
func (r *FileResolver) Invalidate() {
	r.cache.Flush()
}

// Cached returns the number of memoised lookups.
func (r *FileResolver) Cached() int {
	return r.cache.ItemCount()
}

// RelPath converts rawURL to a slash-separated path relative to the resolver
// root. Absolute paths and paths escaping the root are rejected.
func RelPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	p := u.Path
	if u.Opaque != "" {
		p = u.Opaque
	}
	if u.Host != "" {
		p = u.Host + "/" + strings.TrimPrefix(p, "/")
	} else if strings.HasPrefix(p, "/") {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(p)
	if clean == "." || clean == "" {
		return "", false
	}
	return clean, true
}
