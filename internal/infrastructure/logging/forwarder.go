package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// DefaultForwardBuffer is the number of lines a Forwarder holds between
// drains.
const DefaultForwardBuffer = 64

// Forwarder queues formatted log lines for publishing over MQTT.
//
// Handle never blocks: when the buffer is full the line is dropped and
// counted. The session drains the buffer from its loop.
type Forwarder struct {
	level slog.Leveler
	lines chan forwardedLine

	dropped atomic.Uint64
}

type forwardedLine struct {
	level slog.Level
	text  string
}

// NewForwarder creates a Forwarder that keeps records at or above level.
// A size below one uses DefaultForwardBuffer.
func NewForwarder(level slog.Leveler, size int) *Forwarder {
	if size < 1 {
		size = DefaultForwardBuffer
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &Forwarder{
		level: level,
		lines: make(chan forwardedLine, size),
	}
}

// Drain calls fn for every queued line, oldest first, and returns when
// the buffer is empty.
func (f *Forwarder) Drain(fn func(level slog.Level, line string)) {
	for {
		select {
		case l := <-f.lines:
			fn(l.level, l.text)
		default:
			return
		}
	}
}

// Dropped returns the number of lines lost to a full buffer.
func (f *Forwarder) Dropped() uint64 {
	return f.dropped.Load()
}

func (f *Forwarder) enabled(level slog.Level) bool {
	return level >= f.level.Level()
}

func (f *Forwarder) enqueue(level slog.Level, text string) {
	select {
	case f.lines <- forwardedLine{level: level, text: text}:
	default:
		f.dropped.Add(1)
	}
}

// levelLetter abbreviates a level the way device consoles print it.
func levelLetter(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "E"
	case level >= slog.LevelWarn:
		return "W"
	case level >= slog.LevelInfo:
		return "I"
	default:
		return "D"
	}
}

// teeHandler writes to primary and, when the level qualifies, formats a
// one-line copy for the forwarder.
type teeHandler struct {
	primary slog.Handler
	forward *Forwarder

	// attrs already rendered as " key=value" pairs, in order.
	prefix string
	group  string
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.forward.enabled(level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.primary.Enabled(ctx, r.Level) {
		err = h.primary.Handle(ctx, r)
	}
	if h.forward.enabled(r.Level) {
		h.forward.enqueue(r.Level, h.format(r))
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	return &teeHandler{
		primary: h.primary.WithAttrs(attrs),
		forward: h.forward,
		prefix:  b.String(),
		group:   h.group,
	}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &teeHandler{
		primary: h.primary.WithGroup(name),
		forward: h.forward,
		prefix:  h.prefix,
		group:   group,
	}
}

// format renders "[I] message key=value ...". The service and version
// attributes are left out; every line on the topic comes from this node.
func (h *teeHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(levelLetter(r.Level))
	b.WriteString("] ")
	b.WriteString(r.Message)
	b.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	return b.String()
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Key == "service" || a.Key == "version" {
		return
	}

	key := a.Key
	if group != "" && key != "" {
		key = group + "." + key
	} else if key == "" {
		key = group
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}

	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString("=")
	s := a.Value.String()
	if strings.ContainsAny(s, " \t\"=") {
		fmt.Fprintf(b, "%q", s)
	} else {
		b.WriteString(s)
	}
}
