// Package glog provides leveled, V-gated logging (glog.V(level).Infoln(...)),
// trimmed to what the gossip engine needs: no flag parsing, no vmodule,
// no log files. Verbosity is a value set once at construction by the
// caller that owns main — there is still a package-level atomic here to
// hold the verbosity ceiling, but nothing in this package parses flags
// or reads the filesystem to get there.
package glog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is a verbosity tier: higher means more detailed.
type Level int32

const (
	Silence Level = iota
	Error
	Warn
	Info
	Debug
	Detail
)

var verbosity int32

// SetVerbosity sets the process-wide ceiling: calls at or below level
// produce output, calls above it are skipped. Intended to be called
// once, at startup, by the binary's main before running anything else.
func SetVerbosity(level Level) {
	atomic.StoreInt32(&verbosity, int32(level))
}

var logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// Verbose is returned by V; its Info/Warning/Error methods are no-ops
// when the call site's level exceeds the configured verbosity.
type Verbose bool

// V reports whether level is at or below the configured verbosity.
func V(level Level) Verbose {
	return Verbose(atomic.LoadInt32(&verbosity) >= int32(level))
}

func (v Verbose) Info(args ...interface{}) {
	if v {
		logger.Output(2, "INFO  "+fmt.Sprint(args...))
	}
}

func (v Verbose) Infoln(args ...interface{}) {
	if v {
		logger.Output(2, "INFO  "+fmt.Sprintln(args...))
	}
}

func (v Verbose) Infof(format string, args ...interface{}) {
	if v {
		logger.Output(2, "INFO  "+fmt.Sprintf(format, args...))
	}
}

// Warningln and Errorln are unconditional: Warning/Error always write
// regardless of verbosity, only Info is V-gated.
func Warningln(args ...interface{}) {
	logger.Output(2, "WARN  "+fmt.Sprintln(args...))
}

func Warningf(format string, args ...interface{}) {
	logger.Output(2, "WARN  "+fmt.Sprintf(format, args...))
}

func Errorln(args ...interface{}) {
	logger.Output(2, "ERROR "+fmt.Sprintln(args...))
}

func Errorf(format string, args ...interface{}) {
	logger.Output(2, "ERROR "+fmt.Sprintf(format, args...))
}
