package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment is the deployment environment the service runs in
type Environment string

const (
	// ProductionEnvironment logs JSON at info level
	ProductionEnvironment Environment = "production"
	// DevelopmentEnvironment logs human readable output at debug level
	DevelopmentEnvironment Environment = "development"
)

// NewLogger creates a zap logger for the given environment, tagged with the service name
func NewLogger(environment Environment, service string, level string) (*zap.Logger, error) {
	var config zap.Config
	switch environment {
	case ProductionEnvironment:
		config = zap.NewProductionConfig()
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		var zapLevel zapcore.Level
		err := zapLevel.UnmarshalText([]byte(strings.ToLower(level)))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", level)
		}
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, errors.Wrap(err, "unable to build logger")
	}

	return logger.With(zap.String("service", service)), nil
}
