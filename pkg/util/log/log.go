package log

import (
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
)

// Logger is the default sink for library logging. It starts as a Nop so the
// library stays silent inside embedding applications until they call
// InitLogger or hand their own logger to NewClient.
var Logger = kitlog.NewNopLogger()

// InitLogger builds a stderr logger in the given format ("logfmt" or "json")
// filtered to levelName severity and above, installs it as the package
// default and returns it.
func InitLogger(format, levelName string) (kitlog.Logger, error) {
	var lvl dslog.Level
	if err := lvl.Set(levelName); err != nil {
		return nil, err
	}

	writer := kitlog.NewSyncWriter(os.Stderr)
	logger := dslog.NewGoKitWithWriter(format, writer)

	// Caller(5) lands on the logging call site through the filter and the
	// with-wrappers below.
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5))

	// The filter goes last so discarded records skip the timestamp and
	// caller work.
	logger = level.NewFilter(logger, lvl.Option)

	Logger = logger
	return logger, nil
}
