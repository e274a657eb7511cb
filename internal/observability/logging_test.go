package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithBuildID(t *testing.T) {
	ctx := WithBuildID(context.Background(), "build-123")

	lc := GetContext(ctx)
	if lc.BuildID != "build-123" {
		t.Errorf("expected build-123, got %s", lc.BuildID)
	}
}

func TestWithStage(t *testing.T) {
	ctx := WithStage(WithBuildID(context.Background(), "b1"), "plan_chunks")

	lc := GetContext(ctx)
	if lc.Stage != "plan_chunks" {
		t.Errorf("expected plan_chunks, got %s", lc.Stage)
	}
	if lc.BuildID != "b1" {
		t.Errorf("stage must not reset build id, got %q", lc.BuildID)
	}
}

func TestAttrs_Empty(t *testing.T) {
	if attrs := Attrs(context.Background()); len(attrs) != 0 {
		t.Errorf("expected no attrs, got %v", attrs)
	}
}

func TestInfoContext_WritesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithTrigger(WithStage(WithBuildID(context.Background(), "b-42"), "emit_artifacts"), "watch")

	InfoContext(ctx, logger, "Emitted", slog.Int("count", 3))

	out := buf.String()
	for _, want := range []string{"build_id=b-42", "stage=emit_artifacts", "trigger=watch", "count=3", "msg=Emitted"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestLogger_AnnotatesBase(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	if Logger(context.Background(), base) != base {
		t.Error("expected base logger returned unchanged without context")
	}
	Logger(WithBuildID(context.Background(), "x"), base).Warn("hello")
	if !strings.Contains(buf.String(), "build_id=x") {
		t.Errorf("missing build id in %q", buf.String())
	}
}
