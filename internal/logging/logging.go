package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Logger  = zerolog.Nop()
	logFile *os.File
)

// timestampHook adds timestamp at the end of each log event
type timestampHook struct{}

func (h timestampHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	e.Time("ts", time.Now())
}

// Dir returns the directory log files are written to
func Dir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "termctl")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state", "termctl")
}

// Init initializes the logging system with zerolog.
// Events go to <Dir>/<name>.log, and additionally to extra when it is non-nil.
func Init(name string, extra io.Writer) error {
	logDir := Dir()
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}

	logPath := filepath.Join(logDir, name+".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f

	// Set global level to Info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure field names
	zerolog.MessageFieldName = "msg"

	var out io.Writer = logFile
	if extra != nil {
		out = zerolog.MultiLevelWriter(logFile, zerolog.ConsoleWriter{Out: extra, TimeFormat: time.Kitchen})
	}

	// Create logger with hook that adds timestamp last
	Logger = zerolog.New(out).With().Str("proc", name).Logger().Hook(timestampHook{})

	return nil
}

// SetDebug toggles debug level logging
func SetDebug(on bool) {
	if on {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetLevel sets the global level from a name such as "warn"; unknown names are ignored.
func SetLevel(name string) {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil && name != "" {
		zerolog.SetGlobalLevel(lvl)
	}
}

// Close closes the log file
func Close() {
	if logFile != nil {
		logFile.Close()
	}
}

// Debug returns a debug level event
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info returns an info level event
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn returns a warn level event
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error returns an error level event
func Error() *zerolog.Event {
	return Logger.Error()
}
