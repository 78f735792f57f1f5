// Package sound holds the packaged sound bundle.
//
// Effects live under resources/ and fixed-name raw resources such as the
// loading indicator live under raw/.
package sound

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// bundleFiles contains the built-in sounds.
//
//go:embed bundle
var bundleFiles embed.FS

// Bundle returns the built-in bundle rooted at its resources/ and raw/ directories.
func Bundle() fs.FS {
	sub, err := fs.Sub(bundleFiles, "bundle")
	if err != nil {
		panic(fmt.Sprintf("sound: embedded bundle: %v", err))
	}
	return sub
}

// Open returns the bundle in dir, or the built-in bundle when dir is empty.
func Open(dir string) (fs.FS, error) {
	if dir == "" {
		return Bundle(), nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening bundle: %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Resources lists the effect URLs available in bundle, sorted.
func Resources(bundle fs.FS) ([]string, error) {
	var names []string
	err := fs.WalkDir(bundle, "resources", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, path[len("resources/"):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing bundle resources: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
