// Package logging constructs the service logger.
package logging

import (
	"github.com/sirupsen/logrus"
)

// New returns a JSON-formatted logrus logger at the given level.
// An unparseable level falls back to info.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
