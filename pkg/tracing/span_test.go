package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search")
	_, err := uuid.Parse(root.TraceID)
	require.NoError(t, err)

	childCtx, child := StartChildSpan(ctx, "search.evaluate")
	child.SetAttr("hits", 2)
	child.End()
	root.End()

	assert.Same(t, child, SpanFromContext(childCtx))
	assert.Equal(t, root.TraceID, child.TraceID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, 2, root.Children[0].Attrs["hits"])
	assert.GreaterOrEqual(t, root.Duration, child.Duration)
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "fetch")
	assert.Empty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestLogAtDebug(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger.Setup("debug", "text", &buf)
	ctx, root := StartSpan(context.Background(), "search")
	_, child := StartChildSpan(ctx, "search.parse")
	child.End()
	root.End()
	root.Log()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=search ")
	assert.Contains(t, lines[1], "span=search.parse")
	assert.Contains(t, lines[1], "depth=1")

	buf.Reset()
	logger.Setup("info", "text", &buf)
	root.Log()
	assert.Empty(t, buf.String())
}
