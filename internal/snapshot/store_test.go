package snapshot

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func testSnapshot(n int) Snapshot {
	return New(time.Unix(int64(n), 0), 0, map[string]SourceResult{
		"a": {Status: StatusSuccess, Data: n},
	})
}

func TestStoreCurrent(t *testing.T) {
	s := NewStore(nil)

	if _, ok := s.Current(); ok {
		t.Fatal("Current() before publish should be empty")
	}

	var last Snapshot
	for i := 1; i <= 3; i++ {
		last = testSnapshot(i)
		s.Publish(last)
	}

	got, ok := s.Current()
	if !ok {
		t.Fatal("Current() after publish should be set")
	}
	if got.CycleID != last.CycleID || got.BySource["a"].Data != 3 {
		t.Errorf("Current() = %+v, want the third snapshot", got)
	}
}

func TestStoreSubscribeOrder(t *testing.T) {
	s := NewStore(nil)

	var calls []string
	s.Subscribe(func(Snapshot) { calls = append(calls, "first") })
	s.Subscribe(func(Snapshot) { calls = append(calls, "second") })
	s.Subscribe(func(Snapshot) { calls = append(calls, "third") })

	s.Publish(testSnapshot(1))
	s.Publish(testSnapshot(2))

	want := []string{"first", "second", "third", "first", "second", "third"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestStoreUnsubscribe(t *testing.T) {
	s := NewStore(nil)

	var calls []string
	var unsubSecond func()
	s.Subscribe(func(Snapshot) {
		calls = append(calls, "first")
		unsubSecond()
	})
	unsubSecond = s.Subscribe(func(Snapshot) { calls = append(calls, "second") })
	var unsubSelf func()
	unsubSelf = s.Subscribe(func(Snapshot) {
		calls = append(calls, "self")
		unsubSelf()
	})

	s.Publish(testSnapshot(1))
	s.Publish(testSnapshot(2))

	want := []string{"first", "self", "first"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if s.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", s.Subscribers())
	}

	// Calling the handle again is a no-op.
	unsubSecond()
	unsubSelf()
}

func TestStoreListenerPanic(t *testing.T) {
	s := NewStore(nil)

	called := false
	s.Subscribe(func(Snapshot) { panic("boom") })
	s.Subscribe(func(Snapshot) { called = true })

	s.Publish(testSnapshot(1))

	if !called {
		t.Error("listener after a panicking listener was not called")
	}
	if _, ok := s.Current(); !ok {
		t.Error("snapshot should be stored despite listener panic")
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := NewStore(nil)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if snap, ok := s.Current(); ok {
					n := snap.BySource["a"].Data.(int)
					if snap.CollectedAt.Unix() != int64(n) {
						t.Errorf("torn snapshot: collected_at %d, data %d", snap.CollectedAt.Unix(), n)
						return
					}
				}
			}
		}()
	}

	for i := 1; i <= 200; i++ {
		s.Publish(testSnapshot(i))
	}
	close(done)
	wg.Wait()
}
