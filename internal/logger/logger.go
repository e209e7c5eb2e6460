// Package logger writes prefixed log lines through a buffered background worker
// so request handlers never block on log output. Function timings can be logged with DeferLogDuration.
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

const asyncBufferSize = 8192

var (
	prefix   string
	logLevel = levelInfo
	ch       chan string
	once     sync.Once
)

type level int

const (
	levelDebug level = iota
	levelInfo
)

// slowThreshold is the minimum duration LogDuration reports outside debug level.
const slowThreshold = 100 * time.Millisecond

func initLevel() {
	logLevel = parseLevel(os.Getenv("LOG_LEVEL"))
}

func parseLevel(s string) level {
	switch s {
	case "debug", "trace":
		return levelDebug
	default:
		return levelInfo
	}
}

func initWorker() {
	initLevel()
	ch = make(chan string, asyncBufferSize)
	go func() {
		for msg := range ch {
			log.Print(msg)
		}
	}()
}

func enqueue(msg string) {
	once.Do(initWorker)
	select {
	case ch <- msg:
	default:
		// buffer full, drop
	}
}

// SetPrefix sets the tag written in front of every line ("web", "worker").
func SetPrefix(p string) {
	prefix = p
}

// SetLevel overrides the level read from LOG_LEVEL.
func SetLevel(s string) {
	once.Do(initWorker)
	logLevel = parseLevel(s)
}

// DebugEnabled reports whether Debug/Debugf lines are emitted.
func DebugEnabled() bool {
	once.Do(initWorker)
	return logLevel == levelDebug
}

func tag() string {
	if prefix == "" {
		return ""
	}
	return "[" + prefix + "] "
}

func Info(v ...any) {
	enqueue(tag() + fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	enqueue(tag() + fmt.Sprintf(format, v...))
}

func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// Debugf is a no-op unless LOG_LEVEL is debug or trace.
func Debugf(format string, v ...any) {
	if !DebugEnabled() {
		return
	}
	enqueue(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
}

// LogDuration logs fn and its elapsed time in milliseconds.
// At info level only calls slower than 100ms are logged.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if DebugEnabled() || elapsed >= slowThreshold {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration is meant for defer: defer logger.DeferLogDuration("Handler", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}

// Flush waits up to timeout for queued lines to be written.
func Flush(timeout time.Duration) {
	once.Do(initWorker)
	deadline := time.Now().Add(timeout)
	for len(ch) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}
