package logger

import "gitlab.com/ccsd.net/internal/adapter/logging"

var Logger = logging.NewZapLogger()

// SetDebug replaces the global logger with one that emits debug entries
func SetDebug(debug bool) {
	Logger = logging.NewZapLoggerWithLevel(debug)
}

func Info(msg string, args ...interface{}) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...interface{}) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger.Warn(msg, args...)
}
