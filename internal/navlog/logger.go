// Package navlog configures the module's structured logger. It is
// grounded on PossumXI-Asgard_Arobi/Valkyrie/pkg/utils/logger.go's
// NewLogger, adopting logrus in place of a hand-rolled
// file tracer (common.go's Trace family).
package navlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger with the given level name ("debug", "info",
// "warn", "error"; unknown values fall back to "info") writing to stderr
// with a text formatter, the way Valkyrie's NewLogger selects among a
// fixed set of levels before returning the configured logger.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}
