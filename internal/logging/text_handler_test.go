package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Date(2026, 1, 19, 10, 30, 0, 0, time.UTC), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestTextHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil)

	err := h.Handle(context.Background(), record(slog.LevelInfo, "Subscription registered",
		slog.String("subscription", "abc"),
		slog.Int("page_size", 50),
		slog.Bool("idle", false),
		slog.Duration("took", 1500*time.Millisecond),
	))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-19T10:30:00Z: [INFO] Subscription registered subscription=abc page_size=50 idle=false took=1.5s\n", buf.String())
}

func TestTextHandler_Quoting(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil)

	require.NoError(t, h.Handle(context.Background(), record(slog.LevelWarn, "Failed",
		slog.String("query", `doc['a'] == "x"`),
		slog.String("empty", ""),
		slog.Any("error", errors.New("store down")),
	)))
	assert.Equal(t, `2026-01-19T10:30:00Z: [WARN] Failed query="doc['a'] == \"x\"" empty="" error="store down"`+"\n", buf.String())
}

func TestTextHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil).
		WithAttrs([]slog.Attr{slog.String("component", "changefeed")}).
		WithGroup("change").
		WithAttrs([]slog.Attr{slog.String("op", "insert")})

	require.NoError(t, h.Handle(context.Background(), record(slog.LevelInfo, "Applied",
		slog.Group("doc", slog.String("id", "r1")),
	)))
	assert.Equal(t, "2026-01-19T10:30:00Z: [INFO] Applied component=changefeed change.op=insert change.doc.id=r1\n", buf.String())

	assert.Same(t, h, h.WithGroup(""))
}

func TestTextHandler_Level(t *testing.T) {
	h := NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	def := NewTextHandler(&bytes.Buffer{}, nil)
	assert.False(t, def.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, def.Enabled(context.Background(), slog.LevelInfo))
}

func TestTextHandler_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.With("subscription", "s1").Debug("Stale page discarded", "cursor", 10)
	assert.Contains(t, buf.String(), "[DEBUG] Stale page discarded subscription=s1 cursor=10\n")
}
