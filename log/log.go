// Package log declares the logging interface threaded through every layer
// of the driver (SPEC_FULL §3.1), plus a stdlib-only console implementation.
// A production default backed by logrus lives in logrus.go.
package log

import (
	"fmt"
	"log"
	"os"
)

// Logger is the driver-wide logging sink. Implementations must be safe for
// concurrent use; the pool, router and session all log from multiple
// goroutines.
type Logger interface {
	Error(name string, id string, err error)
	Warnf(name string, id string, format string, args ...any)
	Infof(name string, id string, format string, args ...any)
	Debugf(name string, id string, format string, args ...any)
}

// BoltLogger receives raw client/server message traces for a single session,
// matching db.BoltLogger (spec §6 "BoltLogger").
type BoltLogger interface {
	LogClientMessage(context string, msg string, args ...any)
	LogServerMessage(context string, msg string, args ...any)
}

// Void discards everything; used when no logger is configured.
type Void struct{}

func (Void) Error(string, string, error)          {}
func (Void) Warnf(string, string, string, ...any) {}
func (Void) Infof(string, string, string, ...any) {}
func (Void) Debugf(string, string, string, ...any) {}

// ConsoleLevel controls how verbose the Console logger is.
type ConsoleLevel int

const (
	ErrorLevel ConsoleLevel = iota
	WarningLevel
	InfoLevel
	DebugLevel
)

// Console is a dependency-free logger writing to stderr, matching the
// teacher's ConsoleLogger. Config.Log defaults to Void, not Console.
type Console struct {
	level ConsoleLevel
	out   *log.Logger
}

func NewConsole(level ConsoleLevel) *Console {
	return &Console{level: level, out: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
}

func (c *Console) Error(name, id string, err error) {
	c.out.Printf("%-5s %s %s: %v", "ERROR", name, id, err)
}

func (c *Console) Warnf(name, id, format string, args ...any) {
	if c.level < WarningLevel {
		return
	}
	c.out.Printf("%-5s %s %s: %s", "WARN", name, id, fmt.Sprintf(format, args...))
}

func (c *Console) Infof(name, id, format string, args ...any) {
	if c.level < InfoLevel {
		return
	}
	c.out.Printf("%-5s %s %s: %s", "INFO", name, id, fmt.Sprintf(format, args...))
}

func (c *Console) Debugf(name, id, format string, args ...any) {
	if c.level < DebugLevel {
		return
	}
	c.out.Printf("%-5s %s %s: %s", "DEBUG", name, id, fmt.Sprintf(format, args...))
}
