// Package logging constructs the loggers used across the tool. The CLI
// handler keeps records on one short line so they stay readable next to
// command output; the JSON mode exists for scripted invocations.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Mode selects the record format.
type Mode int

const (
	// ModeCLI renders terse single-line records for interactive use.
	ModeCLI Mode = iota
	// ModeJSON renders records as JSON objects.
	ModeJSON
)

// New builds a logger writing to w in the requested mode. A nil level
// defaults to info.
func New(mode Mode, w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		panic("logging: writer must not be nil")
	}
	if level == nil {
		level = slog.LevelInfo
	}
	if mode == ModeJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&lineHandler{out: w, level: level})
}

// NewCLI builds a logger for interactive terminal use.
func NewCLI(w io.Writer, level slog.Leveler) *slog.Logger {
	return New(ModeCLI, w, level)
}

// NewJSON builds a logger emitting structured JSON records.
func NewJSON(w io.Writer, level slog.Leveler) *slog.Logger {
	return New(ModeJSON, w, level)
}

// Ensure returns logger, or the process default when logger is nil.
func Ensure(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// Router is a handler that forwards records to a replaceable destination.
// Loggers derived from it with With or WithGroup keep following the
// destination, so the record format can be switched after the logger tree
// has been handed out. The CLI needs this: its format flag is only parsed
// after every subcommand has captured its logger.
type Router struct {
	dest *destination
	ops  []routeOp
}

type destination struct {
	mu      sync.RWMutex
	handler slog.Handler
}

// routeOp replays one With or WithGroup call onto the destination. Exactly
// one of group and attrs is set.
type routeOp struct {
	group string
	attrs []slog.Attr
}

// NewRouter builds a Router forwarding to handler.
func NewRouter(handler slog.Handler) *Router {
	if handler == nil {
		panic("logging: handler must not be nil")
	}
	return &Router{dest: &destination{handler: handler}}
}

// Swap replaces the destination for this router and every logger derived
// from it.
func (r *Router) Swap(handler slog.Handler) {
	if handler == nil {
		panic("logging: handler must not be nil")
	}
	r.dest.mu.Lock()
	r.dest.handler = handler
	r.dest.mu.Unlock()
}

func (r *Router) current() slog.Handler {
	r.dest.mu.RLock()
	defer r.dest.mu.RUnlock()
	return r.dest.handler
}

func (r *Router) Enabled(ctx context.Context, level slog.Level) bool {
	return r.current().Enabled(ctx, level)
}

func (r *Router) Handle(ctx context.Context, record slog.Record) error {
	h := r.current()
	for _, op := range r.ops {
		if op.group != "" {
			h = h.WithGroup(op.group)
		} else {
			h = h.WithAttrs(op.attrs)
		}
	}
	return h.Handle(ctx, record)
}

func (r *Router) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return r
	}
	return r.derive(routeOp{attrs: attrs})
}

func (r *Router) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	return r.derive(routeOp{group: name})
}

func (r *Router) derive(op routeOp) *Router {
	ops := make([]routeOp, len(r.ops), len(r.ops)+1)
	copy(ops, r.ops)
	return &Router{dest: r.dest, ops: append(ops, op)}
}

// lineHandler writes "HH:MM:SS LEVEL message key=value ..." records.
// Group names are folded into dotted attribute keys.
type lineHandler struct {
	out   io.Writer
	level slog.Leveler

	mu     sync.Mutex
	prefix string
	attrs  []slog.Attr
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	minimum := slog.LevelInfo
	if h.level != nil {
		minimum = h.level.Level()
	}
	return level >= minimum
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}

	var b strings.Builder
	b.WriteString(when.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-5s", record.Level.String()))
	b.WriteByte(' ')
	b.WriteString(record.Message)

	for _, attr := range h.attrs {
		writeAttr(&b, h.prefix, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, h.prefix, attr)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = next.prefix + name + "."
	return next
}

func (h *lineHandler) clone() *lineHandler {
	return &lineHandler{
		out:    h.out,
		level:  h.level,
		prefix: h.prefix,
		attrs:  append([]slog.Attr(nil), h.attrs...),
	}
}

func writeAttr(b *strings.Builder, prefix string, attr slog.Attr) {
	value := attr.Value.Resolve()
	if attr.Key == "" && value.Kind() != slog.KindGroup {
		return
	}
	if value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix += attr.Key + "."
		}
		for _, nested := range value.Group() {
			writeAttr(b, groupPrefix, nested)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(attr.Key)
	b.WriteByte('=')
	text := value.String()
	if strings.ContainsAny(text, " \t") {
		fmt.Fprintf(b, "%q", text)
	} else {
		b.WriteString(text)
	}
}
