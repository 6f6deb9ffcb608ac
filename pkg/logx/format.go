package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fields is a map of structured data
type Fields map[string]interface{}

// record is a single formatted log line
type record struct {
	Level   Level
	Message string
	Fields  Fields
	Err     error
	Time    time.Time
	Caller  string
}

// Formatter renders a record to bytes
type Formatter interface {
	Format(r *record) ([]byte, error)
}

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
	colorBoldRed = "\033[1;31m"
	colorBoldYel = "\033[1;33m"
	colorBoldGrn = "\033[1;32m"
	colorBoldCyn = "\033[1;36m"
)

type consoleFormatter struct {
	cfg *Config
}

func (f *consoleFormatter) Format(r *record) ([]byte, error) {
	var b strings.Builder

	f.paint(&b, colorGray, formatTime(r.Time, f.cfg.TimeFormat))
	b.WriteByte(' ')
	f.paint(&b, levelColor(r.Level), fmt.Sprintf("[%-5s]", r.Level.String()))
	b.WriteByte(' ')
	if r.Caller != "" {
		f.paint(&b, colorGray, "["+r.Caller+"] ")
	}
	b.WriteString(r.Message)

	if len(r.Fields) > 0 {
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			if k == "error" && r.Err != nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, r.Fields[k]))
		}
		if len(parts) > 0 {
			b.WriteByte(' ')
			f.paint(&b, colorCyan, strings.Join(parts, " "))
		}
	}

	if r.Err != nil {
		b.WriteString("\n  ")
		f.paint(&b, colorRed, "error: "+r.Err.Error())
	}
	b.WriteByte('\n')

	return []byte(b.String()), nil
}

func (f *consoleFormatter) paint(b *strings.Builder, color, s string) {
	if !f.cfg.EnableColors {
		b.WriteString(s)
		return
	}
	b.WriteString(color)
	b.WriteString(s)
	b.WriteString(colorReset)
}

func levelColor(l Level) string {
	switch l {
	case LevelDebug:
		return colorBoldCyn
	case LevelInfo:
		return colorBoldGrn
	case LevelWarn:
		return colorBoldYel
	case LevelError, LevelFatal:
		return colorBoldRed
	default:
		return colorGray
	}
}

type jsonFormatter struct {
	cfg *Config
}

func (f *jsonFormatter) Format(r *record) ([]byte, error) {
	data := make(map[string]interface{}, len(r.Fields)+4)
	for k, v := range r.Fields {
		data[k] = v
	}
	data["level"] = r.Level.String()
	data["message"] = r.Message
	data["timestamp"] = r.Time.Format(time.RFC3339Nano)
	if r.Caller != "" {
		data["caller"] = r.Caller
	}
	if r.Err != nil {
		data["error"] = r.Err.Error()
	}

	out, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func formatTime(t time.Time, layout string) string {
	if layout == "unixmilli" {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return t.Format(layout)
}
