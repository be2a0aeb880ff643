// Package sessiontest holds the conformance suite every session.Store backend must pass.
package sessiontest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/devmarvs/yaade/session"
)

// StoreFactory creates an empty store for one subtest.
type StoreFactory func(t *testing.T) session.Store

// RunStoreTests runs the complete Store suite against the provided factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("Lifecycle_CreateLoadSave", func(t *testing.T) { testLifecycle(t, factory) })
	t.Run("Lifecycle_UnknownID", func(t *testing.T) { testUnknownID(t, factory) })
	t.Run("Lifecycle_InvalidateIsIdempotent", func(t *testing.T) { testInvalidate(t, factory) })
	t.Run("CAS_StaleVersionConflicts", func(t *testing.T) { testStaleVersion(t, factory) })
	t.Run("CAS_LoadDoesNotBumpVersion", func(t *testing.T) { testLoadKeepsVersion(t, factory) })
	t.Run("Update_ConcurrentNoLostUpdates", func(t *testing.T) { testConcurrentUpdate(t, factory) })
	t.Run("Update_ErrorAbortsWrite", func(t *testing.T) { testUpdateError(t, factory) })
	t.Run("Isolation_LoadedCopiesAreIndependent", func(t *testing.T) { testIsolation(t, factory) })
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testLifecycle(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	created, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.ID) < 43 {
		t.Fatalf("expected 32 byte id, got %q", created.ID)
	}
	if !created.Anonymous() {
		t.Fatalf("expected anonymous session")
	}

	other, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if other.ID == created.ID {
		t.Fatalf("expected distinct ids")
	}

	loaded, err := store.Load(ctx, created.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.SetUser("u1", "admin")
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("save: %v", err)
	}
	if loaded.Version != created.Version+1 {
		t.Fatalf("expected version %d, got %d", created.Version+1, loaded.Version)
	}

	again, err := store.Load(ctx, created.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if id, ok := again.UserID(); !ok || id != "u1" {
		t.Fatalf("expected principal u1, got %q", id)
	}
	if again.Get(session.UserNameKey) != "admin" {
		t.Fatalf("expected user name attribute")
	}
	if again.Version != loaded.Version {
		t.Fatalf("expected version %d, got %d", loaded.Version, again.Version)
	}
}

func testUnknownID(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	if _, err := store.Load(ctx, "does-not-exist"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Load(ctx, ""); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
	ghost := &session.Session{ID: "does-not-exist", Values: map[string]string{}}
	if err := store.Save(ctx, ghost); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on save, got %v", err)
	}
}

func testInvalidate(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Invalidate(ctx, sess.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := store.Invalidate(ctx, sess.ID); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after invalidate, got %v", err)
	}
	sess.SetUser("u1", "admin")
	if err := store.Save(ctx, sess); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected save after invalidate to fail with ErrNotFound, got %v", err)
	}
	if _, err := session.Update(ctx, store, sess.ID, func(*session.Session) error { return nil }); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected update after invalidate to fail with ErrNotFound, got %v", err)
	}
}

func testStaleVersion(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load first: %v", err)
	}
	second, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load second: %v", err)
	}

	first.Set("writer", "first")
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	second.Set("writer", "second")
	if err := store.Save(ctx, second); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	current, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load current: %v", err)
	}
	if current.Get("writer") != "first" {
		t.Fatalf("expected first write to win, got %q", current.Get("writer"))
	}
}

func testLoadKeepsVersion(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		loaded, err := store.Load(ctx, sess.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.Version != sess.Version {
			t.Fatalf("expected version %d after load, got %d", sess.Version, loaded.Version)
		}
	}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save with version from create: %v", err)
	}
}

func testConcurrentUpdate(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 8
	const perWorker = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := session.Update(ctx, store, sess.ID, func(s *session.Session) error {
					n, _ := strconv.Atoi(s.Get("counter"))
					s.Set("counter", strconv.Itoa(n+1))
					return nil
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("update: %v", err)
	}

	final, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := final.Get("counter"); got != strconv.Itoa(workers*perWorker) {
		t.Fatalf("expected counter %d, got %s", workers*perWorker, got)
	}
	if final.Version != sess.Version+workers*perWorker {
		t.Fatalf("expected version %d, got %d", sess.Version+workers*perWorker, final.Version)
	}
}

func testUpdateError(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	boom := errors.New("boom")
	_, err = session.Update(ctx, store, sess.ID, func(s *session.Session) error {
		s.SetUser("u1", "admin")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Anonymous() || loaded.Version != sess.Version {
		t.Fatalf("expected untouched session, got %+v", loaded)
	}
}

func testIsolation(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := testContext(t)

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.SetUser("u1", "admin")

	fresh, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load fresh: %v", err)
	}
	if !fresh.Anonymous() {
		t.Fatalf("unsaved mutation leaked into the store")
	}
}
