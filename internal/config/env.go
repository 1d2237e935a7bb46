package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; values already in the process environment win.
var envFiles = []string{".env", ".env.local"}

// errNoEnvFile is returned by loadEnvFiles when none of envFiles exists.
var errNoEnvFile = errors.New("no .env file found")

// loadEnvFiles loads every present .env file.
func loadEnvFiles() error {
	loaded := 0
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		loaded++
	}
	if loaded == 0 {
		return errNoEnvFile
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} references with their environment values. Bare
// $NAME and $$ are left alone so shell commands in the file keep their variables.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}
