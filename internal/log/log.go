// Package log is a thin wrapper over charmbracelet/log so the rest of the
// module logs through one configured logger.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	cblog "github.com/charmbracelet/log"
)

type Logger = cblog.Logger

var (
	logger     *Logger
	loggerOnce sync.Once
)

func GetLogger() *Logger {
	loggerOnce.Do(func() {
		logger = cblog.NewWithOptions(os.Stderr, cblog.Options{
			Prefix:          "grimshot",
			ReportTimestamp: false,
			Level:           levelFromEnv(),
		})
	})
	return logger
}

func levelFromEnv() cblog.Level {
	v := os.Getenv("GRIMSHOT_LOG_LEVEL")
	if v == "" {
		return cblog.InfoLevel
	}
	lvl, err := cblog.ParseLevel(strings.ToLower(v))
	if err != nil {
		return cblog.InfoLevel
	}
	return lvl
}

// SetLevel accepts debug, info, warn, error or fatal.
func SetLevel(level string) error {
	lvl, err := cblog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	GetLogger().SetLevel(lvl)
	return nil
}

func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

func WithPrefix(prefix string) *Logger {
	return GetLogger().WithPrefix(prefix)
}

func Debug(msg any, keyvals ...any) { GetLogger().Debug(msg, keyvals...) }
func Info(msg any, keyvals ...any)  { GetLogger().Info(msg, keyvals...) }
func Warn(msg any, keyvals ...any)  { GetLogger().Warn(msg, keyvals...) }
func Error(msg any, keyvals ...any) { GetLogger().Error(msg, keyvals...) }
func Fatal(msg any, keyvals ...any) { GetLogger().Fatal(msg, keyvals...) }

func Debugf(format string, args ...any) { GetLogger().Debugf(format, args...) }
func Infof(format string, args ...any)  { GetLogger().Infof(format, args...) }
func Warnf(format string, args ...any)  { GetLogger().Warnf(format, args...) }
func Errorf(format string, args ...any) { GetLogger().Errorf(format, args...) }
func Fatalf(format string, args ...any) { GetLogger().Fatalf(format, args...) }
