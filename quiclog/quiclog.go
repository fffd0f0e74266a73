// Package quiclog is the logging façade used across the frame codec.
//
// It keeps the call-site shape of the teacher project's pkg/logger
// (Debug/Info/Warn/Error/Success/Fatal/Section/Banner) but delegates
// formatting, level filtering and coloring to logrus instead of
// hand-rolled ANSI escapes, so the codec can be embedded in a process
// that already configures logrus output (JSON in production, text in a
// terminal) without code here caring which.
package quiclog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	return l
}

// SetLevel sets the minimum log level by name ("debug", "info", "warn", "error").
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	base.Debug(fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	base.Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	base.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	base.Error(fmt.Sprintf(format, args...))
}

// Success logs an info-level message tagged as a successful outcome.
// logrus has no dedicated success level, so it rides on Info with a field.
func Success(format string, args ...interface{}) {
	base.WithField("status", "success").Info(fmt.Sprintf(format, args...))
}

// Fatal logs a fatal error and exits the process.
func Fatal(format string, args ...interface{}) {
	base.Fatal(fmt.Sprintf(format, args...))
}

// Section prints a section header, unrelated to level filtering — used
// by the demo command when it walks through named stages of a run.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n╔%s╗\n", border)
	fmt.Printf("║ %-61s ║\n", title)
	fmt.Printf("╚%s╝\n\n", border)
}

// Banner prints the application banner for cmd/quicframedump.
func Banner(title, version string) {
	fmt.Printf("\n== %s (v%s) ==\n\n", title, version)
}
