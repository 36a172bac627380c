package system

import (
	"os"
	"sync"

	clog "github.com/charmbracelet/log"
)

// Logger is the shared diagnostics logger. It writes to stderr so that
// chat output on stdout stays clean.
var Logger = clog.NewWithOptions(os.Stderr, clog.Options{
	ReportTimestamp: true,
	Level:           clog.WarnLevel,
})

var (
	mu         sync.Mutex
	components []*clog.Logger
)

// SetDebug switches the shared logger and every component logger between
// warn and debug level.
func SetDebug(on bool) {
	level := clog.WarnLevel
	if on {
		level = clog.DebugLevel
	}

	mu.Lock()
	defer mu.Unlock()
	Logger.SetLevel(level)
	// children copy the level when created, so each one is updated in turn
	for _, l := range components {
		l.SetLevel(level)
	}
}

// Component returns a child logger tagged with the component name.
func Component(name string) *clog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := Logger.WithPrefix(name)
	l.SetLevel(Logger.GetLevel())
	components = append(components, l)
	return l
}
