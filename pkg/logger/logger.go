// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	prefix string
	zl     zerolog.Logger
}

var (
	out     = &fanout{}
	logFile *os.File
	fileMu  sync.Mutex
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	out.set("stdout", consoleWriter(os.Stdout, false))
	if os.Getenv("DEBUG") != "" {
		EnableDebug(true)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Init adds the log file next to stdout. Calling it again switches files.
func Init(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	fileMu.Lock()
	old := logFile
	logFile = f
	fileMu.Unlock()

	out.set("file", consoleWriter(f, true))
	if old != nil {
		old.Close()
	}
	return nil
}

// SetLevel applies a zerolog level name ("debug", "info", "warn", ...).
func SetLevel(name string) error {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// Close cleans up the log file (call on shutdown)
func Close() {
	fileMu.Lock()
	defer fileMu.Unlock()
	if logFile != nil {
		out.remove("file")
		logFile.Close()
		logFile = nil
	}
}

// EnableDebug dynamically turns debug logging on/off
func EnableDebug(on bool) {
	if on {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// IsDebug returns current debug state
func IsDebug() bool {
	return zerolog.GlobalLevel() <= zerolog.DebugLevel
}

// AddSink mirrors every log line, rendered as plain text, into w until the
// returned func is called.
func AddSink(name string, w io.Writer) func() {
	out.set("sink:"+name, consoleWriter(w, true))
	return func() { out.remove("sink:" + name) }
}

func New(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		zl:     zerolog.New(out).With().Timestamp().Str("svc", prefix).Logger(),
	}
}

func (l *Logger) Info(fmtstr string, v ...any) {
	l.zl.Info().Msgf(fmtstr, v...)
}

func (l *Logger) Error(fmtstr string, v ...any) {
	ev := l.zl.Error()
	if _, file, line, ok := runtime.Caller(1); ok {
		ev = ev.Str("at", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	ev.Msgf(fmtstr, v...)
}

// Fatal logs and panics; service.Start turns the panic into a shutdown.
func (l *Logger) Fatal(fmtstr string, v ...any) {
	formatted := fmt.Sprintf(fmtstr, v...)
	ev := l.zl.WithLevel(zerolog.FatalLevel)
	if _, file, line, ok := runtime.Caller(1); ok {
		ev = ev.Str("at", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	ev.Msg(formatted)
	panic(formatted)
}

func (l *Logger) Debug(fmtstr string, v ...any) {
	l.zl.Debug().Msgf(fmtstr, v...)
}

func consoleWriter(w io.Writer, noColor bool) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: "2006/01/02 15:04:05",
	}
}

// fanout is a named set of writers that can change while loggers hold it.
type fanout struct {
	mu      sync.RWMutex
	order   []string
	writers map[string]io.Writer
}

func (f *fanout) set(name string, w io.Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writers == nil {
		f.writers = make(map[string]io.Writer)
	}
	if _, ok := f.writers[name]; !ok {
		f.order = append(f.order, name)
	}
	f.writers[name] = w
}

func (f *fanout) remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.writers, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fanout) Write(p []byte) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, name := range f.order {
		// write errors of a single sink are dropped
		_, _ = f.writers[name].Write(p)
	}
	return len(p), nil
}
