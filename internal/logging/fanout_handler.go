package logging

import (
	"context"
	"log/slog"
	"strings"
)

type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	var filtered []slog.Handler
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	switch len(filtered) {
	case 0:
		return slog.DiscardHandler
	case 1:
		return filtered[0]
	}
	return &fanoutHandler{handlers: filtered}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for idx, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if idx < len(h.handlers)-1 {
			rec = record.Clone()
		}
		if err := handler.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// TeeLogger duplicates log output from base into the provided handlers.
func TeeLogger(base *slog.Logger, handlers ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newFanoutHandler(handlers...))
	}
	all := append([]slog.Handler{base.Handler()}, handlers...)
	return slog.New(newFanoutHandler(all...))
}

// lineHandler renders each record as a single line and hands it to sink.
type lineHandler struct {
	level  slog.Leveler
	sink   func(string)
	attrs  []slog.Attr
	groups []string
}

// NewLineHandler returns a handler that formats records at or above level as
// one-line summaries ("WARN [apiclient] – message: error") for in-app display.
func NewLineHandler(level slog.Leveler, sink func(string)) slog.Handler {
	if sink == nil {
		return slog.DiscardHandler
	}
	return &lineHandler{level: level, sink: sink}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	e := collect(record, h.attrs, h.groups)
	var b strings.Builder
	b.WriteString(levelLabel(record.Level))
	if e.component != "" {
		b.WriteString(" [")
		b.WriteString(e.component)
		b.WriteByte(']')
	}
	if e.subject != "" {
		b.WriteByte(' ')
		b.WriteString(e.subject)
	}
	b.WriteString(" – ")
	b.WriteString(e.message)
	for _, f := range e.fields {
		if f.key == "error" {
			b.WriteString(": ")
			b.WriteString(attrString(f.value))
			break
		}
	}
	h.sink(b.String())
	return nil
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}
