package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_DefaultsToSlogDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), base.With("request_id", "r1"))
	ctx = With(ctx, "tenant_id", "t1")
	FromContext(ctx).Info("hello")

	out := buf.String()
	assert.Contains(t, out, "request_id=r1")
	assert.Contains(t, out, "tenant_id=t1")
}
