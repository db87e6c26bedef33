package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures a single Load call.
type Option func(*loader)

type loader struct {
	files       []string
	defaultFile string
	prefix      string
	environment map[string]string
}

// WithEnvFiles reads the given .env files before parsing. Later files override
// earlier ones; variables already present in the environment win over both.
// A missing file is an error.
func WithEnvFiles(paths ...string) Option {
	return func(l *loader) {
		l.files = append(l.files, paths...)
	}
}

// WithDefaultEnvFile changes the optional file that is read when it exists.
// Pass an empty string to disable it. Defaults to ".env".
func WithDefaultEnvFile(path string) Option {
	return func(l *loader) {
		l.defaultFile = path
	}
}

// WithPrefix prepends prefix to every env tag, e.g. "APP_" turns LOG_LEVEL
// into APP_LOG_LEVEL.
func WithPrefix(prefix string) Option {
	return func(l *loader) {
		l.prefix = prefix
	}
}

// WithEnvironment parses from m instead of the process environment.
// Useful in tests that cannot call t.Setenv.
func WithEnvironment(m map[string]string) Option {
	return func(l *loader) {
		l.environment = m
	}
}

// Load parses environment variables into a new T using its `env` struct tags.
//
//	type Config struct {
//		Level string        `env:"LOG_LEVEL" envDefault:"info"`
//		Tick  time.Duration `env:"TICKBUS_TICK_INTERVAL" envDefault:"100ms"`
//	}
//
//	cfg, err := config.Load[Config](config.WithEnvFiles("local.env"))
func Load[T any](opts ...Option) (T, error) {
	l := loader{defaultFile: ".env"}
	for _, opt := range opts {
		opt(&l)
	}

	var zero T
	environment, err := l.resolve()
	if err != nil {
		return zero, err
	}

	cfg, err := env.ParseAsWithOptions[T](env.Options{
		Environment: environment,
		Prefix:      l.prefix,
	})
	if err != nil {
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error.
// Use it for configuration the process cannot start without.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load required configuration: %v", err))
	}
	return cfg
}

// resolve merges env files under the base environment.
func (l loader) resolve() (map[string]string, error) {
	base := l.environment
	if base == nil {
		base = environ()
	}

	files := l.files
	if l.defaultFile != "" {
		if _, err := os.Stat(l.defaultFile); err == nil {
			files = append([]string{l.defaultFile}, files...)
		}
	}
	if len(files) == 0 {
		return base, nil
	}

	fromFiles, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadingEnvFile, err)
	}

	merged := make(map[string]string, len(base)+len(fromFiles))
	maps.Copy(merged, fromFiles)
	maps.Copy(merged, base)
	return merged, nil
}

func environ() map[string]string {
	vars := os.Environ()
	m := make(map[string]string, len(vars))
	for _, kv := range vars {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
