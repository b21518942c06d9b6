package errortracking

import (
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

// Config configures the raven client
type Config struct {
	DSN         string `envconfig:"DSN"`
	Version     string `envconfig:"-"`
	Environment string `envconfig:"-"`
}

// Init configures the default raven client, it is a no-op without a DSN
func Init(config *Config) error {
	if config == nil || config.DSN == "" {
		return nil
	}

	err := raven.SetDSN(config.DSN)
	if err != nil {
		return errors.Wrap(err, "unable to set raven DSN")
	}

	raven.SetRelease(config.Version)
	raven.SetEnvironment(config.Environment)

	return nil
}
