package lifecycle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyLocksSerializeSameKey(t *testing.T) {
	k := newKeyLocks()
	var inside int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			if n := atomic.AddInt32(&inside, 1); n != 1 {
				t.Errorf("%d holders of the same key", n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if k.size() != 0 {
		t.Errorf("size = %d after all unlocks, want 0", k.size())
	}
}

func TestKeyLocksIndependentKeys(t *testing.T) {
	k := newKeyLocks()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}
