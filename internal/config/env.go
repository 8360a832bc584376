package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// envFiles are tried in order; each one that exists is loaded.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads .env and .env.local from the working directory and returns
// the files that were found. Variables already present in the process
// environment are never overwritten, so .env wins over .env.local.
func LoadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return loaded, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load environment file").
				WithContext("path", name).
				Build()
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}
