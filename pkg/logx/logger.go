package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Logger writes formatted records to an output
type Logger struct {
	mu        sync.Mutex
	level     Level
	caller    bool
	formatter Formatter
	writer    io.Writer
	exitFunc  func(int)
}

// NewLogger creates a new logger with the given config
func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var formatter Formatter = &consoleFormatter{cfg: cfg}
	if cfg.Format == FormatJSON {
		formatter = &jsonFormatter{cfg: cfg}
	}

	w := cfg.Output
	if w == nil {
		w = os.Stdout
	}

	return &Logger{
		level:     cfg.Level,
		caller:    cfg.EnableCaller,
		formatter: formatter,
		writer:    w,
		exitFunc:  os.Exit,
	}
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return (&Entry{logger: l}).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return (&Entry{logger: l}).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return (&Entry{logger: l}).WithError(err)
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if !l.GetLevel().Enabled(level) {
		return
	}

	r := &record{
		Level:   level,
		Message: msg,
		Fields:  fields,
		Err:     err,
		Time:    time.Now(),
	}
	if l.caller {
		r.Caller = caller(4)
	}

	out, fmtErr := l.formatter.Format(r)
	if fmtErr != nil {
		fmt.Fprintf(os.Stderr, "logx: format: %v\n", fmtErr)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, wErr := l.writer.Write(out); wErr != nil {
		fmt.Fprintf(os.Stderr, "logx: write: %v\n", wErr)
	}
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// Entry accumulates fields for a single log call. Each With* call returns a
// new Entry so entries can be shared between goroutines.
type Entry struct {
	logger *Logger
	fields Fields
	err    error
}

func (e *Entry) clone() *Entry {
	fields := make(Fields, len(e.fields)+1)
	for k, v := range e.fields {
		fields[k] = v
	}
	return &Entry{logger: e.logger, fields: fields, err: e.err}
}

// WithField adds a field to the entry
func (e *Entry) WithField(key string, value interface{}) *Entry {
	n := e.clone()
	n.fields[key] = value
	return n
}

// WithFields adds multiple fields to the entry
func (e *Entry) WithFields(fields Fields) *Entry {
	n := e.clone()
	for k, v := range fields {
		n.fields[k] = v
	}
	return n
}

// WithError attaches an error to the entry
func (e *Entry) WithError(err error) *Entry {
	n := e.clone()
	n.err = err
	if err != nil {
		n.fields["error"] = err.Error()
	}
	return n
}

func (e *Entry) Debug(msg string) { e.logger.log(LevelDebug, msg, e.fields, e.err) }
func (e *Entry) Info(msg string)  { e.logger.log(LevelInfo, msg, e.fields, e.err) }
func (e *Entry) Warn(msg string)  { e.logger.log(LevelWarn, msg, e.fields, e.err) }
func (e *Entry) Error(msg string) { e.logger.log(LevelError, msg, e.fields, e.err) }

func (e *Entry) Debugf(format string, args ...interface{}) {
	e.logger.log(LevelDebug, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Infof(format string, args ...interface{}) {
	e.logger.log(LevelInfo, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.logger.log(LevelWarn, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.logger.log(LevelError, fmt.Sprintf(format, args...), e.fields, e.err)
}

// Fatal logs at fatal level and exits
func (e *Entry) Fatal(msg string) {
	e.logger.log(LevelFatal, msg, e.fields, e.err)
	e.logger.exitFunc(1)
}
