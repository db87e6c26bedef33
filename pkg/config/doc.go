// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct-tag parsing and
// github.com/joho/godotenv for .env files. Files are read into a map and
// merged under the process environment, so loading never mutates os.Environ.
//
// # Usage
//
//	type Config struct {
//	    Workers      int           `env:"TICKBUS_WORKERS" envDefault:"0"`
//	    TickInterval time.Duration `env:"TICKBUS_TICK_INTERVAL" envDefault:"100ms"`
//	}
//
//	cfg, err := config.Load[Config]()
//	if err != nil {
//	    return err
//	}
//
// A ".env" file in the working directory is read when present. Extra files are
// added with WithEnvFiles; unlike the default file they must exist. Later
// files override earlier ones and the process environment overrides all files.
//
// # Error Handling
//
//   - ErrParsingConfig: a value could not be parsed or a required one is missing.
//   - ErrReadingEnvFile: a file passed to WithEnvFiles could not be read.
//
// MustLoad panics instead of returning an error.
package config
