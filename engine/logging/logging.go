// Package logging provides the process-wide structured logger used across the engine.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(func() {
		l := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "oxy-rt",
		})
		l.SetLevel(log.InfoLevel)
		singleton = &logger{l}
	})
	return singleton
}

// SetLevel sets the minimum level that is written, by name (debug, info, warn, error, fatal).
//
// Parameters:
//   - level: the level name
//
// Returns:
//   - error: error if the level name is not recognized
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	getLogger().SetLevel(lvl)
	return nil
}

// SetOutput redirects the logger to w.
func SetOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

func LogDebug(msg string, args ...any) {
	getLogger().Helper()
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...any) {
	getLogger().Helper()
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...any) {
	getLogger().Helper()
	getLogger().Warnf(msg, args...)
}

// LogWarnErr logs at warn level with err attached under the "err" key.
func LogWarnErr(err error, msg string, args ...any) {
	getLogger().Helper()
	getLogger().Warn(fmt.Sprintf(msg, args...), "err", err)
}

func LogError(msg string, args ...any) {
	getLogger().Helper()
	getLogger().Errorf(msg, args...)
}

// LogFatal logs at fatal level and exits the process with status 1.
func LogFatal(msg string, args ...any) {
	getLogger().Helper()
	getLogger().Fatalf(msg, args...)
}
