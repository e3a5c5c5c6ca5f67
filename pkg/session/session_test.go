package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/tractstory/pkg/cache"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"cache":  NewCacheStore(fc),
	}
}

// times survive JSON with their monotonic reading stripped
var equateTimes = cmpopts.EquateApproxTime(time.Millisecond)

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			sess := New("abc123", time.Hour)
			if sess.Step != -1 {
				t.Errorf("new session step = %d, want -1", sess.Step)
			}
			if err := tserrors.ValidateSessionID(sess.ID); err != nil {
				t.Fatalf("generated id %q invalid: %v", sess.ID, err)
			}
			sess.Touch(4, 0.25, time.Hour)
			if err := store.Set(ctx, sess); err != nil {
				t.Fatalf("Set() error: %v", err)
			}

			got, err := store.Get(ctx, sess.ID)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if diff := cmp.Diff(sess, got, equateTimes); diff != "" {
				t.Errorf("Get() (-want +got):\n%s", diff)
			}

			if err := store.Delete(ctx, sess.ID); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
			if got, err := store.Get(ctx, sess.ID); err != nil || got != nil {
				t.Errorf("Get() after delete = %v, %v", got, err)
			}

			missing := GenerateID()
			if got, err := store.Get(ctx, missing); err != nil || got != nil {
				t.Errorf("Get(missing) = %v, %v", got, err)
			}
		})
	}
}

func TestExpiredSessionsAreHidden(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := New("abc123", time.Hour)
			sess.ExpiresAt = time.Now().Add(-time.Minute)
			if err := store.Set(ctx, sess); err != nil {
				t.Fatal(err)
			}
			if got, err := store.Get(ctx, sess.ID); err != nil || got != nil {
				t.Errorf("Get(expired) = %v, %v", got, err)
			}
			if err := store.Cleanup(ctx); err != nil {
				t.Errorf("Cleanup() error: %v", err)
			}
		})
	}
}

func TestMemoryCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	live, dead := New("h", time.Hour), New("h", time.Hour)
	dead.ExpiresAt = time.Now().Add(-time.Second)
	store.Set(ctx, live)
	store.Set(ctx, dead)
	store.Cleanup(ctx)
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestFileStoreCleanupRemovesFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	dead := New("h", time.Hour)
	dead.ExpiresAt = time.Now().Add(-time.Second)
	if err := store.Set(ctx, dead); err != nil {
		t.Fatal(err)
	}
	if err := store.Cleanup(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, dead.ID+".json")); !os.IsNotExist(err) {
		t.Errorf("expired session file still present: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "../../etc/passwd"); !tserrors.Is(err, tserrors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestTouch(t *testing.T) {
	sess := New("h", time.Minute)
	before := sess.ExpiresAt
	time.Sleep(time.Millisecond)
	sess.Touch(2, 0.8, time.Hour)
	if sess.Step != 2 || sess.Progress != 0.8 || sess.Scrolls != 1 {
		t.Errorf("Touch() = %+v", sess)
	}
	if !sess.ExpiresAt.After(before) {
		t.Error("Touch() should extend expiry")
	}
}
