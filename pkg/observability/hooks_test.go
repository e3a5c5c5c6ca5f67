package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Pipeline hooks
	p := NoopPipelineHooks{}
	p.OnLoadStart(ctx, "dataset.csv")
	p.OnLoadComplete(ctx, "dataset.csv", 305, time.Second, nil)
	p.OnLayoutStart(ctx, "total-pop", 305)
	p.OnLayoutComplete(ctx, "total-pop", 300, time.Second)
	p.OnRenderStart(ctx, []string{"svg"})
	p.OnRenderComplete(ctx, []string{"svg"}, time.Second, nil)

	// Transition hooks
	tr := NoopTransitionHooks{}
	tr.OnTransition(ctx, -1, 3, 4, time.Millisecond)
	tr.OnRenderFailed(ctx, "scatter", errors.New("boom"))

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "dataset")
	c.OnCacheMiss(ctx, "frame")
	c.OnCacheSet(ctx, "frame", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "raw.githubusercontent.com", "/data/dataset.csv")
	h.OnResponse(ctx, "GET", "raw.githubusercontent.com", "/data/dataset.csv", 200, time.Second)
	h.OnError(ctx, "GET", "raw.githubusercontent.com", "/data/dataset.csv", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Transition().(NoopTransitionHooks); !ok {
		t.Error("Transition() should return NoopTransitionHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customTransition := &testTransitionHooks{}
	SetTransitionHooks(customTransition)
	if Transition() != customTransition {
		t.Error("SetTransitionHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
	if _, ok := Transition().(NoopTransitionHooks); !ok {
		t.Error("Reset() should restore NoopTransitionHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)

	// Setting nil should be ignored
	SetPipelineHooks(nil)
	SetTransitionHooks(nil)

	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
	if Transition() == nil {
		t.Error("SetTransitionHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testPipelineHooks struct{ NoopPipelineHooks }
type testTransitionHooks struct{ NoopTransitionHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
