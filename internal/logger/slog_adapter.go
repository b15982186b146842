package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewSlogHandler returns a slog.Handler that forwards records to the provided
// Logger, turning attributes into logrus fields. Group names are joined with
// dots. If l is nil, it returns nil.
func NewSlogHandler(l *Logger) slog.Handler {
	if l == nil {
		return nil
	}
	return &slogAdapter{log: l}
}

// Slog wraps l in an *slog.Logger.
func Slog(l *Logger) *slog.Logger {
	if l == nil {
		l = Global()
	}
	return slog.New(NewSlogHandler(l))
}

type slogAdapter struct {
	log    *Logger
	groups []string
	fields logrus.Fields
}

func (h *slogAdapter) Enabled(_ context.Context, level slog.Level) bool {
	if h.log == nil {
		return false
	}
	mapped := slogLevelToLoggerLevel(level)
	return mapped != LevelNone && mapped >= h.log.GetLevel()
}

func (h *slogAdapter) Handle(_ context.Context, record slog.Record) error {
	if h.log == nil {
		return nil
	}

	fields := make(logrus.Fields, len(h.fields)+record.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	record.Attrs(func(attr slog.Attr) bool {
		collectAttr(fields, attr, h.groups)
		return true
	})

	level := slogLevelToLoggerLevel(record.Level)
	target := h.log
	if len(fields) > 0 {
		target = &Logger{
			level:    h.log.level,
			entry:    h.log.entry.WithFields(fields),
			prefix:   h.log.prefix,
			disabled: h.log.disabled,
		}
	}
	target.log(level, "%s", record.Message)
	return nil
}

func (h *slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(logrus.Fields, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		fields[k] = v
	}
	for _, attr := range attrs {
		collectAttr(fields, attr, h.groups)
	}
	return &slogAdapter{
		log:    h.log,
		groups: append([]string(nil), h.groups...),
		fields: fields,
	}
}

func (h *slogAdapter) WithGroup(name string) slog.Handler {
	newGroups := append([]string(nil), h.groups...)
	if name != "" {
		newGroups = append(newGroups, name)
	}
	return &slogAdapter{
		log:    h.log,
		groups: newGroups,
		fields: h.fields,
	}
}

func slogLevelToLoggerLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func collectAttr(fields logrus.Fields, attr slog.Attr, groups []string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		nested := groups
		if attr.Key != "" {
			nested = append(append([]string(nil), groups...), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			collectAttr(fields, a, nested)
		}
		return
	}

	key := attr.Key
	if key == "" {
		key = "attr"
	}
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	fields[key] = attr.Value.Any()
}
