// Package pflog is a small structured logger attached to power-flow runs:
// leveled entries with a key/value payload, written through fmt/log rather
// than a third-party logging library.
package pflog

import (
	"fmt"
	"io"
	"log"
	"time"
)

// Level is a log severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "?"
	}
}

// Entry is one structured log line.
type Entry struct {
	Time   time.Time
	Level  Level
	Msg    string
	Fields map[string]any
}

// Logger accumulates Entry records and mirrors them to an underlying
// *log.Logger so both a live progress stream and a queryable history of
// a run are available.
type Logger struct {
	std     *log.Logger
	minimum Level
	entries []Entry
}

// New creates a Logger writing human-readable lines to w at or above
// minimum severity, while still recording every entry (regardless of
// minimum) for later retrieval via Entries. A nil w writes nothing.
func New(w io.Writer, minimum Level) *Logger {
	l := &Logger{minimum: minimum}
	if w != nil {
		l.std = log.New(w, "", log.LstdFlags)
	}
	return l
}

func (l *Logger) log(level Level, msg string, fields map[string]any) {
	e := Entry{Time: time.Now(), Level: level, Msg: msg, Fields: fields}
	l.entries = append(l.entries, e)
	if level < l.minimum || l.std == nil {
		return
	}
	l.std.Println(formatEntry(e))
}

func formatEntry(e Entry) string {
	line := fmt.Sprintf("[%s] %s", e.Level, e.Msg)
	for k, v := range e.Fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	return line
}

func (l *Logger) Debugf(msg string, fields map[string]any) { l.log(Debug, msg, fields) }
func (l *Logger) Infof(msg string, fields map[string]any)  { l.log(Info, msg, fields) }
func (l *Logger) Warnf(msg string, fields map[string]any)  { l.log(Warn, msg, fields) }
func (l *Logger) Errorf(msg string, fields map[string]any) { l.log(Error, msg, fields) }

// Entries returns every recorded entry regardless of the configured
// minimum severity, for attaching to a driver.Result or test assertion.
func (l *Logger) Entries() []Entry { return append([]Entry(nil), l.entries...) }
