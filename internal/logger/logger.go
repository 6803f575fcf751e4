package logger

import (
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel string

const (
	InfoLevel  LogLevel = "INFO"
	ErrorLevel LogLevel = "ERROR"
	DebugLevel LogLevel = "DEBUG"
)

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	userIDRegex = regexp.MustCompile(`\buser_id\s*=\s*[0-9a-fA-F-]+\b`)
)

var (
	mu   sync.RWMutex
	base = newBase(os.Stdout, "json")
)

// Logger is a centralized structured logger
type Logger struct {
	out    *zerolog.Logger
	fields map[string]string
}

// New creates a new Logger sharing the process-wide output.
func New() *Logger {
	return &Logger{}
}

// NewWithWriter creates a Logger bound to w, independent of Configure.
func NewWithWriter(w io.Writer) *Logger {
	l := newBase(w, "json")
	return &Logger{out: &l}
}

// Configure sets the level and format (json or console) for every Logger
// created by New.
func Configure(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	mu.Lock()
	base = newBase(os.Stdout, format)
	mu.Unlock()
}

func newBase(w io.Writer, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// With returns a Logger that adds key=value to every entry.
func (l *Logger) With(key, value string) *Logger {
	fields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{out: l.out, fields: fields}
}

func (l *Logger) zl() *zerolog.Logger {
	if l.out != nil {
		return l.out
	}
	mu.RLock()
	defer mu.RUnlock()
	b := base
	return &b
}

// Anonymize replaces sensitive information in logs (emails, tokens, IDs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	return s
}

func (l *Logger) log(module string, level LogLevel, msg string, err error) {
	z := l.zl()
	var ev *zerolog.Event
	switch level {
	case ErrorLevel:
		ev = z.Error()
	case DebugLevel:
		ev = z.Debug()
	default:
		ev = z.Info()
	}
	if module != "" {
		ev = ev.Str("module", module)
	}
	for k, v := range l.fields {
		ev = ev.Str(k, v)
	}
	if err != nil {
		ev = ev.Str("error", Anonymize(err.Error()))
	}
	ev.Msg(Anonymize(msg))
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string) {
	l.log(module, InfoLevel, msg, nil)
}

func (l *Logger) Debug(module, msg string) {
	l.log(module, DebugLevel, msg, nil)
}

func (l *Logger) Error(module, msg string, err error) {
	l.log(module, ErrorLevel, msg, err)
}
