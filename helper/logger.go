package helper

import (
	"os"
	"strings"

	"github.com/phuslu/log"
)

var Log log.Logger = log.Logger{
	Level: log.InfoLevel,
	Writer: &log.ConsoleWriter{
		Writer:      os.Stderr,
		ColorOutput: true,
	},
}

// SetLevel changes the level of the shared logger. Unknown names fall back to info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		Log.Level = log.TraceLevel
	case "debug":
		Log.Level = log.DebugLevel
	case "warn", "warning":
		Log.Level = log.WarnLevel
	case "error":
		Log.Level = log.ErrorLevel
	default:
		Log.Level = log.InfoLevel
	}
}
