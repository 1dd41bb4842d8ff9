// Package mlog is a small, leveled, contextual logging library. Log methods
// take a context.Context (optionally annotated via mctx) whose annotations
// are rendered alongside the message.
package mlog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mediocregopher/tinyredis/mctx"
	"github.com/mediocregopher/tinyredis/merr"
)

// Level describes the severity of a log message.
type Level struct {
	s string
	i int
}

// String returns the name of the Level, e.g. "INFO".
func (l Level) String() string { return l.s }

// Int returns the severity of the Level; lower is more severe. A negative Int
// indicates a fatal level.
func (l Level) Int() int { return l.i }

// Pre-defined log levels, most to least severe.
var (
	LevelFatal = Level{s: "FATAL", i: -1}
	LevelError = Level{s: "ERROR", i: 10}
	LevelWarn  = Level{s: "WARN", i: 20}
	LevelInfo  = Level{s: "INFO", i: 30}
	LevelDebug = Level{s: "DEBUG", i: 40}
)

// LevelFromString returns the Level named by s (case-insensitive), or false
// if s doesn't name one of the predefined Levels.
func LevelFromString(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return Level{}, false
	}
}

// Message describes one message to be logged.
type Message struct {
	Ctx         context.Context
	Level       Level
	Description string
}

type messageJSON struct {
	Time        string            `json:"time"`
	Level       string            `json:"level"`
	Description string            `json:"descr"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Logger writes Messages to an underlying io.Writer as newline-delimited
// JSON, filtering anything below its configured maximum level.
type Logger struct {
	l        sync.Mutex
	enc      *json.Encoder
	out      io.Writer
	maxLevel int
	now      func() time.Time
}

// NewLogger returns a Logger which writes to out. The default maximum level
// is LevelInfo.
func NewLogger(out io.Writer) *Logger {
	return &Logger{
		enc:      json.NewEncoder(out),
		out:      out,
		maxLevel: LevelInfo.Int(),
		now:      time.Now,
	}
}

// Null discards every message logged to it.
var Null = NewLogger(discard{})

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// SetMaxLevel changes the maximum Level which will be handled; anything less
// severe (i.e. with a larger Int) is dropped.
func (l *Logger) SetMaxLevel(lvl Level) {
	l.l.Lock()
	defer l.l.Unlock()
	l.maxLevel = lvl.Int()
}

// Log writes msg if its Level is at or above the Logger's configured
// maximum severity. A Fatal-level Message terminates the process after being
// written.
func (l *Logger) Log(msg Message) {
	l.l.Lock()
	maxLevel := l.maxLevel
	l.l.Unlock()

	if msg.Level.Int() >= 0 && msg.Level.Int() > maxLevel {
		return
	}

	full := messageJSON{
		Time:        l.now().UTC().Format(time.RFC3339Nano),
		Level:       msg.Level.String(),
		Description: msg.Description,
		Annotations: mctx.StringMap(msg.Ctx),
	}

	l.l.Lock()
	err := l.enc.Encode(full)
	l.l.Unlock()
	if err != nil {
		// nothing else we can reasonably do with a broken log sink
		os.Stderr.WriteString("mlog: failed to encode message: " + err.Error() + "\n")
	}

	if msg.Level.Int() < 0 {
		os.Exit(1)
	}
}

func withErr(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	var merrErr merr.Error
	if errors.As(err, &merrErr) {
		ctx = mctx.Annotate(ctx, "errLine", merrErr.Stacktrace.String())
		for _, a := range mctx.Annotations(merrErr.Ctx) {
			ctx = mctx.Annotate(ctx, a.Key, a.Value)
		}
	}
	return mctx.Annotate(ctx, "err", err.Error())
}

// Debug logs a LevelDebug message.
func (l *Logger) Debug(ctx context.Context, descr string) {
	l.Log(Message{Ctx: ctx, Level: LevelDebug, Description: descr})
}

// Info logs a LevelInfo message.
func (l *Logger) Info(ctx context.Context, descr string) {
	l.Log(Message{Ctx: ctx, Level: LevelInfo, Description: descr})
}

// Warn logs a LevelWarn message, annotating ctx with err's information.
func (l *Logger) Warn(ctx context.Context, descr string, err error) {
	l.Log(Message{Ctx: withErr(ctx, err), Level: LevelWarn, Description: descr})
}

// Error logs a LevelError message, annotating ctx with err's information.
func (l *Logger) Error(ctx context.Context, descr string, err error) {
	l.Log(Message{Ctx: withErr(ctx, err), Level: LevelError, Description: descr})
}

// Fatal logs a LevelFatal message and then exits the process with status 1.
func (l *Logger) Fatal(ctx context.Context, descr string, err error) {
	l.Log(Message{Ctx: withErr(ctx, err), Level: LevelFatal, Description: descr})
}
