package common

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	loggersMu sync.Mutex
	loggers   = map[string]*logrus.Logger{}
)

// CreateLogger returns the per-package logger for pkgName, creating it on
// first use. Every call for the same pkgName returns the same instance so
// SetLevel changes made through InitLoggers are visible everywhere.
func CreateLogger(pkgName string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	l, ok := loggers[pkgName]
	if !ok {
		l = logrus.New()
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		loggers[pkgName] = l
	}
	return l.WithField("pkg", pkgName)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to a logrus.Level.
func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warning", "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers sets the log level from config on every package logger
// created so far, first creating the kvstore, flood, rpc, rpc/transport
// and cmd loggers if they do not exist yet. Loggers created after the call
// start at logrus' default level.
func InitLoggers(config ServerConfig) {
	level := parseLogLevel(config.LogLevel)

	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, pkg := range []string{"kvstore", "flood", "rpc", "rpc/transport", "cmd"} {
		l, ok := loggers[pkg]
		if !ok {
			l = logrus.New()
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			loggers[pkg] = l
		}
		l.SetLevel(level)
	}
	for _, l := range loggers {
		l.SetLevel(level)
	}
}
