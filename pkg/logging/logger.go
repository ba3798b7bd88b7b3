// Package logging provides structured debug logging for Piexi components.
//
// Logs are written to a run-specific file under ~/.piexi/logs so they never
// interfere with the terminal UI. If file logging cannot be initialized the
// logger falls back to stderr.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes timestamped, component-tagged entries for one Piexi component.
// Multiple components share the same underlying run file.
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	path      string
	closeOnce sync.Once
}

var (
	runID     string
	runIDOnce sync.Once

	logDir     string
	logDirOnce sync.Once
	logDirErr  error
)

// RunID returns the identifier shared by all loggers in this process.
func RunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// Directory returns the directory where log files are stored, creating it if
// needed.
func Directory() (string, error) {
	logDirOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			logDirErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}
		logDir = filepath.Join(home, ".piexi", "logs")
		if err := os.MkdirAll(logDir, 0750); err != nil {
			logDirErr = fmt.Errorf("failed to create log directory: %w", err)
		}
	})
	return logDir, logDirErr
}

// New creates a logger for a component, writing to
// ~/.piexi/logs/<run-id>-piexi.log.
//
// If the log file cannot be opened, a stderr-backed logger is returned along
// with the error so callers can detect fallback mode.
func New(component string) (*Logger, error) {
	dir, err := Directory()
	if err != nil {
		return fallback(component, err), err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-piexi.log", RunID()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return fallback(component, err), err
	}

	return &Logger{
		runID:     RunID(),
		component: component,
		file:      file,
		logger:    log.New(file, "", 0), // timestamps are formatted by entry()
		path:      path,
	}, nil
}

func fallback(component string, err error) *Logger {
	l := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	l.Printf("WARNING: file logging unavailable, using stderr: %v", err)
	return &Logger{
		runID:     RunID(),
		component: component,
		logger:    l,
	}
}

func (l *Logger) entry(level, message string) string {
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", ts, l.component, level, message)
}

func (l *Logger) write(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(l.entry(level, fmt.Sprintf(format, v...)))
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) { l.write("DEBUG", format, v...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.write("INFO", format, v...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.write("WARN", format, v...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.write("ERROR", format, v...) }

// Writer returns the underlying writer for libraries that expect an io.Writer.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// Path returns the log file path, or empty when writing to stderr.
func (l *Logger) Path() string { return l.path }

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
