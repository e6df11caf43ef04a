// Package publicdir indexes the files of a build output directory once at
// startup. The preview middleware answers existence checks against this
// snapshot instead of hitting the filesystem per request; files that appear
// or vanish on disk afterwards stay invisible until a new index is built.
package publicdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Index is the immutable set of relative file paths found below the scanned
// root. Safe for concurrent readers; never mutated after Scan returns.
type Index struct {
	root  string
	files map[string]struct{}
}

// Scan walks dir recursively and records every regular file as a
// slash-separated relative path. A missing directory yields an empty index
// rather than an error, since a build may populate it later. Symlinked
// directories are followed at most once per real path, so link cycles
// terminate.
func Scan(dir string) (*Index, error) {
	if dir == "" {
		return nil, errors.New("directory path required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}

	ix := &Index{
		root:  abs,
		files: make(map[string]struct{}),
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return ix, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	visited := make(map[string]struct{})
	if err := walkInto(abs, "", visited, ix.files); err != nil {
		return nil, err
	}
	return ix, nil
}

// walkInto records the regular files under dir, keyed by rel. visited holds
// the real paths of directories already entered; a symlinked directory whose
// target was seen before is not entered again, which both terminates cycles
// and keeps the walk linear in the file count. Plain entries are handled
// before symlinks so canonical paths win over aliases regardless of name
// order.
func walkInto(dir, rel string, visited map[string]struct{}, files map[string]struct{}) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Dangling link or a directory removed mid-scan; skip the subtree.
		return nil
	}
	if _, seen := visited[real]; seen {
		return nil
	}
	visited[real] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	var links []os.DirEntry
	for _, entry := range entries {
		name := entry.Name()
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}

		switch mode := entry.Type(); {
		case mode.IsRegular():
			files[childRel] = struct{}{}
		case mode&fs.ModeSymlink != 0:
			links = append(links, entry)
		case mode.IsDir():
			if err := walkInto(filepath.Join(dir, name), childRel, visited, files); err != nil {
				return err
			}
		}
	}

	for _, entry := range links {
		name := entry.Name()
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		childPath := filepath.Join(dir, name)

		target, err := os.Stat(childPath)
		if err != nil {
			continue
		}
		if target.IsDir() {
			if err := walkInto(childPath, childRel, visited, files); err != nil {
				return err
			}
		} else if target.Mode().IsRegular() {
			files[childRel] = struct{}{}
		}
	}
	return nil
}

// Has reports whether rel names a file captured by the snapshot. The
// argument must already be in normalized form (see Normalize).
func (ix *Index) Has(rel string) bool {
	_, ok := ix.files[rel]
	return ok
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	return len(ix.files)
}

// Root returns the absolute directory the index was built from.
func (ix *Index) Root() string {
	return ix.root
}

// Normalize converts a request path into the index's relative form: forward
// slashes, dot segments collapsed, no leading separator. The empty string
// denotes the root itself.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
