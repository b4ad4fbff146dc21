package logx

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/motorchat-core/server/internal/core"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
	Service:     "motorchat",
}

type LoggerOpts struct {
	Environment core.Environment
	Service     string
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	o := opts[0]
	if o.Service == "" {
		o.Service = DefaultLoggerOpts.Service
	}
	return &o
}

// Init configures the global logger. Deployed environments emit JSON at info
// level stamped with the service name; local runs get a debug-level console
// writer with caller locations.
func Init(opts ...LoggerOpts) {
	o := safe(opts...)
	if o.Environment.IsDeployed() {
		log.Logger = log.Logger.Level(zerolog.InfoLevel).With().
			Str("service", o.Service).
			Str("env", o.Environment.String()).
			Logger()
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
