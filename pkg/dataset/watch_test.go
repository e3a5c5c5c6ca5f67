package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	tractsPath := filepath.Join(dir, "tracts.csv")
	yearsPath := filepath.Join(dir, "years.csv")
	if err := os.WriteFile(tractsPath, fixture(t, "tracts.csv"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yearsPath, fixture(t, "years.csv"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloads := make(chan *Dataset, 4)
	w, err := NewWatcher(testLoader(nil), Source{Tracts: tractsPath, Years: yearsPath}, 20*time.Millisecond,
		func(ds *Dataset, err error) {
			if err != nil {
				return
			}
			select {
			case reloads <- ds:
			default:
			}
		})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// drop the last tract
	lines := strings.Split(strings.TrimSpace(string(fixture(t, "tracts.csv"))), "\n")
	trimmed := strings.Join(lines[:len(lines)-1], "\n") + "\n"
	if err := os.WriteFile(tractsPath, []byte(trimmed), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ds := <-reloads:
		if len(ds.Tracts) != 3 {
			t.Errorf("reloaded %d tracts, want 3", len(ds.Tracts))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatcherRejectsRemoteSource(t *testing.T) {
	_, err := NewWatcher(testLoader(nil), DefaultSource(), 0, nil)
	if !tserrors.Is(err, tserrors.ErrCodeUnsupported) {
		t.Errorf("err = %v, want UNSUPPORTED", err)
	}
}
