package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

func quietSpinner(ctx context.Context, msg string) *Spinner {
	s := newSpinnerWithContext(ctx, msg)
	s.out = io.Discard
	return s
}

func TestSpinnerDrawsFrames(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner("Loading dataset...")
	s.out = &buf
	s.Start()
	time.Sleep(3 * spinner.MiniDot.FPS)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Loading dataset...") {
		t.Errorf("spinner output %q should contain the message", out)
	}
	if !strings.Contains(out, spinner.MiniDot.Frames[0]) {
		t.Errorf("spinner output %q should contain the first frame", out)
	}
	if s.Cancelled() {
		t.Error("Stop should not count as cancellation")
	}
}

func TestSpinnerBasic(t *testing.T) {
	s := quietSpinner(context.Background(), "Testing...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if s.Cancelled() {
		t.Error("Spinner should not report cancellation after Stop")
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := quietSpinner(ctx, "Testing with context...")
	s.Start()

	// Cancel the context
	cancel()

	// Give goroutine time to notice cancellation
	time.Sleep(100 * time.Millisecond)

	// Spinner should be cancelled
	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := quietSpinner(ctx, "Testing with timeout...")
	s.Start()

	// Wait for timeout
	time.Sleep(100 * time.Millisecond)

	// Spinner should be cancelled due to timeout
	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := quietSpinner(context.Background(), "Testing idempotent stop...")
	s.Start()

	// Stop multiple times should not panic
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithSuccess(t *testing.T) {
	s := quietSpinner(context.Background(), "Testing success...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithSuccess("Done!")
}

func TestSpinnerStopWithError(t *testing.T) {
	s := quietSpinner(context.Background(), "Testing error...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithError("Failed!")
}
