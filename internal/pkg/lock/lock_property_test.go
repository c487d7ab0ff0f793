// Package lock property tests: per-room serialization of check-then-act
// sequences and independence between keys.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestRoomCapacityCheckThenActProperty races joins against one room. With the
// room lock held around check-then-add, membership never exceeds capacity.
func TestRoomCapacityCheckThenActProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(2, 10).Draw(t, "capacity")
		joiners := rapid.IntRange(2, 30).Draw(t, "joiners")
		code := rapid.StringMatching(`[A-Z2-9]{6}`).Draw(t, "code")

		rl := NewRoomLock()
		members := 0
		var accepted atomic.Int32

		var wg sync.WaitGroup
		wg.Add(joiners)
		for i := 0; i < joiners; i++ {
			go func() {
				defer wg.Done()
				rl.Lock(code)
				defer rl.Unlock(code)
				if members < capacity {
					members++
					accepted.Add(1)
				}
			}()
		}
		wg.Wait()

		want := joiners
		if want > capacity {
			want = capacity
		}
		if members != want || int(accepted.Load()) != want {
			t.Fatalf("members=%d accepted=%d, want %d (capacity=%d joiners=%d)",
				members, accepted.Load(), want, capacity, joiners)
		}
		if rl.Len() != 0 {
			t.Fatalf("lock entries leaked: %d", rl.Len())
		}
	})
}

// TestWithLockSerializesProperty checks WithLock against a shared counter.
func TestWithLockSerializesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		step := rapid.Int64Range(1, 100).Draw(t, "step")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		ul := NewUserLock()
		var coins int64

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = ul.WithLock(userID, func() error {
					coins += step
					return nil
				})
			}()
		}
		wg.Wait()

		if coins != int64(numOps)*step {
			t.Fatalf("coins = %d, want %d", coins, int64(numOps)*step)
		}
	})
}

// TestIndependentKeysProperty runs many rooms in parallel; each room's counter
// only sees its own increments.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numRooms := rapid.IntRange(2, 10).Draw(t, "numRooms")
		opsPerRoom := rapid.IntRange(5, 20).Draw(t, "opsPerRoom")

		rl := NewRoomLock()
		counters := make(map[string]*int, numRooms)
		for i := 0; i < numRooms; i++ {
			n := 0
			counters[fmt.Sprintf("ROOM%02d", i)] = &n
		}

		var wg sync.WaitGroup
		wg.Add(numRooms * opsPerRoom)
		for code, counter := range counters {
			for j := 0; j < opsPerRoom; j++ {
				go func(code string, counter *int) {
					defer wg.Done()
					rl.Lock(code)
					defer rl.Unlock(code)
					*counter++
				}(code, counter)
			}
		}
		wg.Wait()

		for code, counter := range counters {
			if *counter != opsPerRoom {
				t.Fatalf("room %s counter = %d, want %d", code, *counter, opsPerRoom)
			}
		}
	})
}

// TestTryLockProperty checks that concurrent TryLock calls leave the key free
// afterwards and at least one succeeds.
func TestTryLockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		attempts := rapid.IntRange(5, 20).Draw(t, "attempts")

		ul := NewUserLock()
		var successes atomic.Int32
		var wg sync.WaitGroup
		wg.Add(attempts)
		start := make(chan struct{})

		for i := 0; i < attempts; i++ {
			go func() {
				defer wg.Done()
				<-start
				if ul.TryLock(userID) {
					successes.Add(1)
					ul.Unlock(userID)
				}
			}()
		}
		close(start)
		wg.Wait()

		if successes.Load() < 1 {
			t.Fatalf("no TryLock succeeded")
		}
		if !ul.TryLock(userID) {
			t.Fatal("lock should be free after all attempts")
		}
		ul.Unlock(userID)
	})
}

func TestLockWithTimeout(t *testing.T) {
	rl := NewRoomLock()
	ctx := context.Background()

	rl.Lock("ABCDEF")
	if rl.LockWithTimeout(ctx, "ABCDEF", 20*time.Millisecond) {
		t.Fatal("expected timeout while held")
	}
	if !rl.IsLocked("ABCDEF") {
		t.Fatal("expected key to be locked")
	}
	rl.Unlock("ABCDEF")

	if !rl.LockWithTimeout(ctx, "ABCDEF", time.Second) {
		t.Fatal("expected lock after release")
	}
	rl.Unlock("ABCDEF")

	err := rl.WithLockContext(ctx, "ABCDEF", time.Second, func() error { return nil })
	if err != nil {
		t.Fatalf("WithLockContext: %v", err)
	}

	rl.Lock("ABCDEF")
	err = rl.WithLockContext(ctx, "ABCDEF", 10*time.Millisecond, func() error { return nil })
	if err != ErrLockTimeout {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	rl.Unlock("ABCDEF")

	// The abandoned waiter hands the lock back on its own.
	deadline := time.Now().Add(time.Second)
	for rl.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rl.Len() != 0 {
		t.Fatalf("entries leaked after timeouts: %d", rl.Len())
	}
}
