package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

func decodeFile[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// os.ErrNotExist is returned when neither exists.
func ReadConfig[T any](name string) (T, error) {
	prefix, ext := splitExt(name)

	out, foundDefault, err := decodeFile[T](name)
	if err != nil {
		return out, err
	}

	localPath := fmt.Sprintf("%s.local.%s", prefix, ext)
	override, foundLocal, err := decodeFile[T](localPath)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Debug("merging config with local overrides", "local", localPath)
	}

	if !foundDefault && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return defaultOut, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return defaultOut, os.ErrNotExist
		}
		current = parent
	}
}

// Validate checks `validate:"..."` struct tags.
func Validate(config any) error {
	err := validate.Struct(config)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadEnv loads the given .env files into the process environment
// without overriding variables that are already set. Missing files
// are skipped.
func LoadEnv(files ...string) error {
	for _, f := range files {
		_, err := os.Stat(f)
		if os.IsNotExist(err) {
			continue
		}
		err = godotenv.Load(f)
		if err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// EnvOr returns the environment variable or the fallback when unset.
func EnvOr(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}
