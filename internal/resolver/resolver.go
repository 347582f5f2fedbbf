// Package resolver maps request paths to files confined to a served root.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const indexFile = "index.html"

var (
	ErrInvalidRoot = errors.New("root is not a directory")
	ErrPathEscape  = errors.New("path escapes served root")
)

// Resolver turns request paths into candidate file paths under Root.
// It is safe for concurrent use.
type Resolver struct {
	root string // absolute, symlinks evaluated
}

// New validates root and returns a Resolver for it.
func New(root string) (*Resolver, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}

	resolved, err := realpath(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	return &Resolver{root: resolved}, nil
}

// Root returns the resolved root directory
func (r *Resolver) Root() string {
	return r.root
}

// Resolve maps a decoded request path (leading "/") to an absolute
// candidate path. "/" and paths ending in "/" map to their index.html.
// The candidate may not exist, but it is always strictly inside the root;
// anything else returns ErrPathEscape.
func (r *Resolver) Resolve(target string) (string, error) {
	var rel string
	switch {
	case target == "/":
		rel = indexFile
	case strings.HasSuffix(target, "/") && len(target) > 1:
		rel = filepath.Join(strings.Trim(target, "/"), indexFile)
	default:
		rel = strings.TrimPrefix(target, "/")
	}

	// Concatenate rather than Join so ".." is resolved together with
	// symlinks in realpath, not lexically ahead of them.
	candidate, err := realpath(r.root + string(filepath.Separator) + filepath.FromSlash(rel))
	if err != nil {
		return "", err
	}

	if !within(r.root, candidate) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}
	return candidate, nil
}

// within reports whether root is a proper ancestor of path
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// maxSymlinks bounds link chains the same way the kernel does
const maxSymlinks = 40

// realpath resolves p to an absolute path, evaluating ".." and symlinks
// one component at a time. Missing trailing components are kept as-is.
func realpath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	vol := filepath.VolumeName(abs)
	pending := strings.Split(abs[len(vol):], string(filepath.Separator))

	resolved := vol + string(filepath.Separator)
	links := 0
	missing := false

	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]

		switch part {
		case "", ".":
			continue
		case "..":
			// Going up lands back on something that may exist again
			resolved = filepath.Dir(resolved)
			missing = false
			continue
		}

		next := filepath.Join(resolved, part)
		if missing {
			resolved = next
			continue
		}

		info, err := os.Lstat(next)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
				missing = true
				resolved = next
				continue
			}
			return "", err
		}

		if info.Mode()&fs.ModeSymlink == 0 {
			resolved = next
			continue
		}

		links++
		if links > maxSymlinks {
			return "", fmt.Errorf("too many levels of symbolic links: %s", p)
		}
		dest, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(dest) {
			vol = filepath.VolumeName(dest)
			resolved = vol + string(filepath.Separator)
			dest = dest[len(vol):]
		}
		pending = append(strings.Split(dest, string(filepath.Separator)), pending...)
	}

	return filepath.Clean(resolved), nil
}
