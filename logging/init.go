package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// init instantiates the package-level GlobalLogger (disabled until a package, such as cmd, configures and enables
// it) and sets up the zerolog globals every covtrace sub-logger shares: stack-trace marshalling for Logger.Error's
// Stack() calls, and a UNIX timestamp format so structured log lines stay compact.
func init() {
	GlobalLogger = NewLogger(zerolog.Disabled, false)

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
