package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerDefaultsToNoop(t *testing.T) {
	if Logger(context.Background()) != NoopLogger() {
		t.Fatal("expected noop logger")
	}
}

func TestDetachKeepsLoggerAndTrace(t *testing.T) {
	logger := zap.NewExample()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = WithLogger(ctx, logger)
	ctx = WithTrace(ctx, TraceInfo{TraceID: "abc"})

	detached := Detach(ctx)
	cancel()

	if detached.Err() != nil {
		t.Fatalf("expected detached context to survive cancellation, got %v", detached.Err())
	}
	if Logger(detached) != logger {
		t.Fatal("expected logger to be carried over")
	}
	if TraceID(detached) != "abc" {
		t.Fatalf("expected trace id abc, got %q", TraceID(detached))
	}
}

func TestAnnotationsSurviveDerivedContexts(t *testing.T) {
	root := WithAnnotations(context.Background())
	inner := context.WithValue(root, struct{}{}, "x")
	Annotate(inner, "vendor_id", "v-1")
	Annotate(inner, "roles", "vendor")
	Annotate(inner, "empty", "")

	keys, values := Annotations(root)
	if len(keys) != 2 || keys[0] != "roles" || keys[1] != "vendor_id" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if values["vendor_id"] != "v-1" {
		t.Fatalf("expected vendor id, got %q", values["vendor_id"])
	}
}

func TestAnnotateWithoutHolderIsIgnored(t *testing.T) {
	ctx := context.Background()
	Annotate(ctx, "user_id", "u-1")
	if keys, _ := Annotations(ctx); keys != nil {
		t.Fatalf("expected no annotations, got %v", keys)
	}
}
