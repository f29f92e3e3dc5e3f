package avplay

import "log"

// Logger is the logging sink the internal engine writes through;
// [NewPlayer] hands the package-level logger to each new [Player]. The package-level
// default writes to the standard library logger; override it globally
// with [SetLogger], mirroring erparts-go-avebi's logger.go.
type Logger interface {
	Printf(format string, v ...any)
}

var pkgLogger Logger = log.Default()

// SetLogger replaces the package-level logger that [NewPlayer] passes to
// players created after the call.
func SetLogger(logger Logger) {
	pkgLogger = logger
}
