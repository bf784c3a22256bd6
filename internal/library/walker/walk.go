package walker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrRootUnreadable is returned when the library root cannot be listed.
var ErrRootUnreadable = errors.New("library root unreadable")

// Options controls which entries a walk keeps.
type Options struct {
	// Extensions is the allow-list of media file extensions, dot included
	Extensions []string

	// IgnorePatterns drop entries whose name contains the pattern as a word,
	// or matches it as a glob when it holds glob characters
	IgnorePatterns []string

	FollowSymlinks bool
}

type filter struct {
	extensions map[string]bool
	words      map[string]bool
	globs      []string
}

func newFilter(opts Options) *filter {
	f := &filter{
		extensions: make(map[string]bool, len(opts.Extensions)),
		words:      make(map[string]bool),
	}
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = true
	}
	for _, p := range opts.IgnorePatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.ContainsAny(p, "*?["):
			f.globs = append(f.globs, p)
		default:
			f.words[p] = true
		}
	}
	return f
}

// skip reports whether an entry name is hidden or ignored.
func (f *filter) skip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	for _, g := range f.globs {
		if ok, _ := filepath.Match(g, lower); ok {
			return true
		}
	}
	if len(f.words) == 0 {
		return false
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if f.words[w] || f.words[strings.TrimSuffix(w, "s")] {
			return true
		}
	}
	return false
}

// media reports whether a file name carries an allowed extension.
func (f *filter) media(name string) bool {
	return f.extensions[strings.ToLower(filepath.Ext(name))]
}

// Walk enumerates the media files under root. Directories are visited from
// an explicit stack; a symlinked directory is entered at most once per real
// path. Unreadable entries are recorded in Tree.Errors and skipped.
func Walk(ctx context.Context, root string, opts Options) (*Tree, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}

	f := newFilter(opts)
	tree := newTree(root, info.ModTime())
	visited := make(map[string]bool)
	if real, err := filepath.EvalSymlinks(root); err == nil {
		visited[real] = true
	}

	stack := []int{0}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return tree, err
		}

		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		dir := tree.nodes[idx].Path

		entries, err := os.ReadDir(dir)
		if err != nil {
			if idx == 0 {
				return nil, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
			}
			tree.Errors = append(tree.Errors, EntryError{Path: dir, Err: err})
			continue
		}

		var subdirs []int
		for _, entry := range entries {
			name := entry.Name()
			if f.skip(name) {
				continue
			}
			path := filepath.Join(dir, name)

			isDir := entry.IsDir()
			if entry.Type()&os.ModeSymlink != 0 {
				if !opts.FollowSymlinks {
					continue
				}
				target, err := os.Stat(path)
				if err != nil {
					tree.Errors = append(tree.Errors, EntryError{Path: path, Err: err})
					continue
				}
				isDir = target.IsDir()
			}

			if isDir {
				if opts.FollowSymlinks {
					real, err := filepath.EvalSymlinks(path)
					if err != nil {
						tree.Errors = append(tree.Errors, EntryError{Path: path, Err: err})
						continue
					}
					if visited[real] {
						continue
					}
					visited[real] = true
				}
				subdirs = append(subdirs, tree.add(idx, Node{Name: name, Path: path, Kind: NodeDir}))
				continue
			}

			if !f.media(name) {
				continue
			}
			fi, err := os.Stat(path)
			if err != nil {
				tree.Errors = append(tree.Errors, EntryError{Path: path, Err: err})
				continue
			}
			if !fi.Mode().IsRegular() {
				continue
			}
			tree.add(idx, Node{Name: name, Path: path, Kind: NodeFile, Size: fi.Size(), ModTime: fi.ModTime()})
		}

		// reversed so directories pop in name order
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return tree, nil
}
