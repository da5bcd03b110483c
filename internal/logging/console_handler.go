package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const logTimestampLayout = "2006-01-02 15:04:05"

type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl slog.Leveler, addSource bool) *prettyHandler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	e := collect(record, h.attrs, h.groups)

	var buf bytes.Buffer
	buf.Grow(192 + len(e.fields)*32)
	writeHeader(&buf, e, record.Level, h.addSource)
	buf.WriteByte('\n')

	for _, f := range e.fields {
		if record.Level >= slog.LevelInfo && isDebugOnlyKey(f.key) {
			continue
		}
		if record.Level < slog.LevelInfo {
			buf.WriteString("    ")
			buf.WriteString(f.key)
			buf.WriteString(": ")
		} else {
			buf.WriteString("    - ")
			buf.WriteString(displayLabel(f.key))
			buf.WriteString(": ")
		}
		buf.WriteString(formatValue(f.value))
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

// entry is a record with its subject fields pulled out of the attribute list.
type entry struct {
	ts        time.Time
	message   string
	component string
	subject   string
	source    *slog.Source
	fields    []kv
}

func collect(record slog.Record, attrs []slog.Attr, groups []string) entry {
	var set fieldSet
	for _, attr := range attrs {
		set.add(groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		set.add(groups, attr)
		return true
	})

	e := entry{ts: record.Time, message: strings.TrimSpace(record.Message), source: record.Source()}
	if e.ts.IsZero() {
		e.ts = time.Now()
	}
	if e.message == "" {
		e.message = "(no message)"
	}
	var jobID, subID string
	for _, f := range set.fields {
		switch f.key {
		case FieldComponent:
			e.component = attrString(f.value)
			continue
		case FieldJobID:
			jobID = attrString(f.value)
		case FieldSubscriptionID:
			subID = attrString(f.value)
		}
		e.fields = append(e.fields, f)
	}
	switch {
	case jobID != "":
		e.subject = "Job " + shortID(jobID)
	case subID != "":
		e.subject = "Subscription " + shortID(subID)
	}
	return e
}

func writeHeader(buf *bytes.Buffer, e entry, level slog.Level, addSource bool) {
	buf.WriteString(e.ts.In(time.Local).Format(logTimestampLayout))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(level))
	if e.component != "" {
		buf.WriteString(" [")
		buf.WriteString(e.component)
		buf.WriteByte(']')
	}
	if e.subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(e.subject)
	}
	buf.WriteString(" – ")
	buf.WriteString(e.message)
	if addSource && e.source != nil {
		buf.WriteString(" [")
		buf.WriteString(filepath.Base(e.source.File))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.source.Line))
		buf.WriteByte(']')
	}
}

// shortID trims UUID-style identifiers to their first block.
func shortID(id string) string {
	id = strings.TrimSpace(id)
	if head, _, ok := strings.Cut(id, "-"); ok && len(head) >= 8 {
		return head
	}
	return id
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case "", FieldRequestID, FieldJobID, FieldSubscriptionID:
		return true
	}
	return strings.HasSuffix(key, "_url") || strings.HasSuffix(key, "_path")
}

func displayLabel(key string) string {
	switch key {
	case FieldEventType:
		return "Event"
	case FieldErrorHint:
		return "Hint"
	case FieldImpact:
		return "Impact"
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}

// fieldSet flattens attributes into dotted keys. A repeated key keeps its
// first position and its last value.
type fieldSet struct {
	fields []kv
	index  map[string]int
}

func (fs *fieldSet) add(prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(prefix[:len(prefix):len(prefix)], attr.Key)
		}
		for _, member := range value.Group() {
			fs.add(prefix, member)
		}
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	if key == "" {
		return
	}
	if fs.index == nil {
		fs.index = make(map[string]int)
	}
	if pos, ok := fs.index[key]; ok {
		fs.fields[pos].value = value
		return
	}
	fs.index[key] = len(fs.fields)
	fs.fields = append(fs.fields, kv{key: key, value: value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindTime {
		return v.Time().In(time.Local).Format(logTimestampLayout)
	}
	return v.String()
}

// formatValue quotes anything that would break the one-field-per-line layout.
func formatValue(v slog.Value) string {
	s := attrString(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
