package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init configures the global logger. Outside production a human readable
// console writer is used.
func Init(env string, debug bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if env != "production" {
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()
	} else {
		Log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// withFields attaches key/value pairs to an event. Odd-length input is
// reported instead of dropped so the call site can be fixed.
func withFields(ev *zerolog.Event, keyValues []interface{}) *zerolog.Event {
	if len(keyValues)%2 != 0 {
		return ev.Interface("unknown_key", keyValues)
	}
	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			return ev.Interface("unknown_key", keyValues)
		}
		ev = ev.Interface(key, keyValues[i+1])
	}
	return ev
}

// Debug logs a debug message.
func Debug(msg string, keyValues ...interface{}) {
	withFields(Log.Debug(), keyValues).Msg(msg)
}

// Info logs an info message.
func Info(msg string, keyValues ...interface{}) {
	withFields(Log.Info(), keyValues).Msg(msg)
}

func Infof(format string, v ...interface{}) {
	Log.Info().Msgf(format, v...)
}

// Warn logs a warning message.
func Warn(msg string, keyValues ...interface{}) {
	withFields(Log.Warn(), keyValues).Msg(msg)
}

// Error logs an error message.
func Error(msg string, err error, keyValues ...interface{}) {
	if len(keyValues)%2 != 0 {
		panic("keyValues must be a list of key/value pairs")
	}

	withFields(Log.Error(), keyValues).Caller(1).Stack().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits the program.
func Fatal(msg string, err error) {
	Log.Fatal().Err(err).Msg(msg)
}
