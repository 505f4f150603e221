package confkit

import (
	"os"
	"path/filepath"
)

// maxClimb bounds the upward directory walk used for root discovery.
const maxClimb = 8

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// repoRoot reports whether dir carries a module or repository marker.
func repoRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}

// climb walks from start toward the filesystem root, visiting each level
// until visit returns true, the walk hits the root, or maxClimb levels pass.
func climb(start string, visit func(dir string) (stop bool)) {
	dir := start
	for i := 0; i < maxClimb; i++ {
		if visit(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
