package confkit

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce folds a .env file into the process environment exactly
// once. ENV_FILE pins a specific file, NO_DOTENV=1 disables loading, and
// existing variables win unless DOTENV_OVERLOAD=1. Without ENV_FILE the
// loader tries .env in every directory from this package up to the
// repository root, so binaries started from subdirectories still pick up
// the checkout's file.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}

	load := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = load(envFile)
		return
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		climb(filepath.Dir(file), func(dir string) bool {
			_ = load(filepath.Join(dir, ".env"))
			return repoRoot(dir)
		})
		return
	}

	_ = load(".env")
}
