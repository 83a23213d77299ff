package delivery

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CheckTrustedPath rejects document paths that contain a ".." traversal
// segment or resolve (after following symlinks) outside every root in
// trustedRoots (spec §7 UntrustedPath/PathTraversal, §8 invariants 7-8).
// The ".." check runs before any filesystem access, so a traversal attempt
// never touches the disk even to stat it.
func CheckTrustedPath(path string, trustedRoots []string) error {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %s", ErrPathTraversal, path)
		}
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		// File doesn't exist yet or isn't reachable; still apply the
		// trusted-root prefix check on the lexically-cleaned path so the
		// rejection is based on where the path claims to live.
		resolved = filepath.Clean(path)
	}

	for _, root := range trustedRoots {
		rootResolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			rootResolved = filepath.Clean(root)
		}
		if resolved == rootResolved || strings.HasPrefix(resolved, rootResolved+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUntrustedPath, path)
}
