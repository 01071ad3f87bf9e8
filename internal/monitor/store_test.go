package monitor

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"busz-backend/internal/tago"
)

func testSession(id string) Session {
	return Session{
		ID:        id,
		Lat:       37.497928,
		Lng:       127.027583,
		BusNumber: "9201",
		Interval:  10,
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(context.Background())

	store.Create(testSession("s1"))

	sess, ok := store.Get("s1")
	if !ok {
		t.Fatal("session not found after Create")
	}
	if sess.Status != StatusActive {
		t.Errorf("status = %q, want active", sess.Status)
	}
	if sess.BusNumber != "9201" || sess.Interval != 10 {
		t.Errorf("unexpected session: %+v", sess)
	}
	if store.Count() != 1 {
		t.Errorf("count = %d, want 1", store.Count())
	}
}

func TestStoreCreateReplacesExisting(t *testing.T) {
	store := NewStore(context.Background())

	var live atomic.Int32
	spawnBlocking := func(ctx context.Context) {
		live.Add(1)
		store.Spawn(func() {
			defer live.Add(-1)
			<-ctx.Done()
		})
	}

	ctx1 := store.Create(testSession("s1"))
	spawnBlocking(ctx1)

	sess2 := testSession("s1")
	sess2.BusNumber = "146"
	ctx2 := store.Create(sess2)
	spawnBlocking(ctx2)

	if store.Count() != 1 {
		t.Fatalf("count = %d, want 1 after replace", store.Count())
	}
	sess, _ := store.Get("s1")
	if sess.BusNumber != "146" {
		t.Errorf("bus number = %q, want replacement", sess.BusNumber)
	}

	// old worker context is cancelled, leaving exactly one live worker
	waitFor(t, time.Second, func() bool { return live.Load() == 1 })
	if ctx1.Err() == nil {
		t.Error("first worker context not cancelled on replace")
	}
	if ctx2.Err() != nil {
		t.Error("second worker context cancelled unexpectedly")
	}
}

func TestStoreRemove(t *testing.T) {
	store := NewStore(context.Background())

	if store.Remove("absent") {
		t.Error("Remove of nonexistent id returned true")
	}

	ctx := store.Create(testSession("s1"))
	done := make(chan struct{})
	store.Spawn(func() {
		<-ctx.Done()
		close(done)
	})

	if !store.Remove("s1") {
		t.Fatal("Remove of existing id returned false")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker still running after Remove")
	}
	if store.Count() != 0 {
		t.Errorf("count = %d, want 0", store.Count())
	}
	if store.Remove("s1") {
		t.Error("second Remove returned true")
	}
}

func TestStoreIsActiveAndValid(t *testing.T) {
	store := NewStore(context.Background())

	if store.IsActiveAndValid("") {
		t.Error("empty id reported active")
	}
	if store.IsActiveAndValid("s1") {
		t.Error("absent session reported active")
	}
	store.Create(testSession("s1"))
	if !store.IsActiveAndValid("s1") {
		t.Error("live session reported inactive")
	}
}

func TestSetCachedStop(t *testing.T) {
	store := NewStore(context.Background())

	// absent session: silent no-op
	store.SetCachedStop("ghost", &gangnamStop)

	store.Create(testSession("s1"))
	store.SetCachedStop("s1", &gangnamStop)

	sess, _ := store.Get("s1")
	if sess.CachedStop == nil || sess.CachedStop.ID != gangnamStop.ID {
		t.Errorf("cached stop = %+v, want %s", sess.CachedStop, gangnamStop.ID)
	}
}

func TestStoreConcurrentCreateRemove(t *testing.T) {
	store := NewStore(context.Background())

	var live atomic.Int32
	const n = 100

	ids := make([]string, n)
	for i := range ids {
		ids[i] = "sess-" + strconv.Itoa(i)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := store.Create(testSession(id))
			live.Add(1)
			store.Spawn(func() {
				defer live.Add(-1)
				<-ctx.Done()
			})
		}(id)
	}
	wg.Wait()

	if store.Count() != n {
		t.Fatalf("count = %d, want %d", store.Count(), n)
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			store.Remove(id)
		}(id)
	}
	wg.Wait()

	if store.Count() != 0 {
		t.Errorf("count = %d, want 0", store.Count())
	}
	waitFor(t, 2*time.Second, func() bool { return live.Load() == 0 })
}

func TestStoreShutdownDrains(t *testing.T) {
	store := NewStore(context.Background())

	var live atomic.Int32
	for i := 0; i < 10; i++ {
		ctx := store.Create(testSession("s" + strconv.Itoa(i)))
		live.Add(1)
		store.Spawn(func() {
			defer live.Add(-1)
			<-ctx.Done()
		})
	}

	store.Shutdown()

	if store.Count() != 0 {
		t.Errorf("count = %d after Shutdown, want 0", store.Count())
	}
	if live.Load() != 0 {
		t.Errorf("%d workers still live after Shutdown", live.Load())
	}
}

func TestStoreCreateCopiesCachedStopIndependently(t *testing.T) {
	store := NewStore(context.Background())
	store.Create(testSession("s1"))

	stop := tago.Stop{ID: "X1", Name: "외부", CityCode: "25"}
	store.SetCachedStop("s1", &stop)

	got, _ := store.Get("s1")
	if got.CachedStop.ID != "X1" {
		t.Fatalf("cached stop = %+v", got.CachedStop)
	}
}
