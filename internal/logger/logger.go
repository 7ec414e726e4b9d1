package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Level controls logger verbosity.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps a config verbosity string to a Level. Unknown values
// default to info.
func ParseLevel(s string) Level {
	switch s {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging to stdout/stderr and an optional log file.
// One instance is built in main and injected into every component.
type Logger struct {
	level    Level
	debugLog *log.Logger
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
	file     *os.File
	mu       sync.Mutex
}

// New creates a Logger. If dir is non-empty, log lines are also appended to
// <dir>/vigil.log.
func New(level Level, dir string) (*Logger, error) {
	var file *os.File
	outWriter := io.Writer(os.Stdout)
	errWriter := io.Writer(os.Stderr)

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filepath.Join(dir, "vigil.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		file = f
		outWriter = io.MultiWriter(os.Stdout, f)
		errWriter = io.MultiWriter(os.Stderr, f)
	}

	flags := log.Ldate | log.Ltime
	return &Logger{
		level:    level,
		debugLog: log.New(outWriter, "DEBUG ", flags),
		infoLog:  log.New(outWriter, "INFO  ", flags),
		warnLog:  log.New(outWriter, "WARN  ", flags),
		errorLog: log.New(errWriter, "ERROR ", flags),
		file:     file,
	}, nil
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	l := log.New(io.Discard, "", 0)
	return &Logger{level: LevelError - 1, debugLog: l, infoLog: l, warnLog: l, errorLog: l}
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level < LevelDebug {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Printf(format, v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.level < LevelInfo {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level < LevelWarn {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnLog.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	if l.level < LevelError {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
