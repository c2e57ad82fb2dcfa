package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Init loads app.yml from the directory named by CONFIG_DIR, falling back to
// the working directory. A missing file is not an error: defaults and the
// environment still apply.
func Init() (*Config, error) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "."
	}

	path := filepath.Join(dir, "app.yml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadConfig("")
		}
		return nil, err
	}
	return LoadConfig(path)
}
