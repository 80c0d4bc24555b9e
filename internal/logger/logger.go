package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. It is usable before Init and writes JSON to stderr.
var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init configures the global logger for the given environment and level.
func Init(env, level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if env == "dev" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		Log = zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
		return
	}
	Log = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func Info() *zerolog.Event  { return Log.Info() }
func Warn() *zerolog.Event  { return Log.Warn() }
func Error() *zerolog.Event { return Log.Error() }
func Debug() *zerolog.Event { return Log.Debug() }
func Fatal() *zerolog.Event { return Log.Fatal() }
