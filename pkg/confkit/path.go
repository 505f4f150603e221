package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ProjectPath resolves rel against the repository root. The root is found by
// walking up from this source file to the first directory holding go.mod or
// .git; the working directory is the fallback when no marker turns up.
func ProjectPath(rel string) (string, error) {
	root, err := projectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath is ProjectPath that panics on failure.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}

func projectRoot() (string, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		var root string
		climb(filepath.Dir(file), func(dir string) bool {
			if repoRoot(dir) {
				root = dir
				return true
			}
			return false
		})
		if root != "" {
			return root, nil
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}
