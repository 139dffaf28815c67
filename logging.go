package sysgate

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetLogger returns the global logger tagged with the component name and
// levelled to verbosity. An empty or unparseable verbosity keeps the global
// level.
func GetLogger(component, verbosity string) zerolog.Logger {
	logger := log.With().Str("component", component).Logger()
	if verbosity == "" {
		return logger
	}

	level, err := zerolog.ParseLevel(verbosity)
	if err != nil {
		return logger
	}

	return logger.Level(level)
}
