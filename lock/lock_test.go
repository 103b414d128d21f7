package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"golang.org/x/sync/errgroup"
)

// exerciseLocker checks that a locker never lets two holders into the same key
func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()

	var holders, maxHolders int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			unlock, err := l.Lock(context.Background(), ObjectiveKey(1))
			if err != nil {
				return err
			}
			defer unlock()

			n := atomic.AddInt32(&holders, 1)
			for {
				m := atomic.LoadInt32(&maxHolders)
				if n <= m || atomic.CompareAndSwapInt32(&maxHolders, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&holders, -1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Unable to lock '%v'", err)
	}
	if maxHolders != 1 {
		t.Errorf("wanted at most one holder, got %d", maxHolders)
	}

	// Different keys don't block each other
	unlock1, err := l.Lock(context.Background(), ObjectiveKey(1))
	if err != nil {
		t.Fatalf("Unable to lock '%v'", err)
	}
	defer unlock1()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock2, err := l.Lock(ctx, ObjectiveKey(2))
	if err != nil {
		t.Fatalf("Unable to lock a second key '%v'", err)
	}
	unlock2()

	// A held key times out with the context
	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, ObjectiveKey(1)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("wanted DeadlineExceeded, got %v", err)
	}
}

func TestInMemoryLocker(t *testing.T) {
	exerciseLocker(t, NewInMemoryLocker())
}

func TestInMemoryLockerForgetsReleasedKeys(t *testing.T) {
	l := NewInMemoryLocker()
	for i := 0; i < 1000; i++ {
		unlock, err := l.Lock(context.Background(), ObjectiveKey(i))
		if err != nil {
			t.Fatalf("Unable to lock '%v'", err)
		}
		unlock()
	}

	// A waiter that gives up is counted out too
	unlock, _ := l.Lock(context.Background(), "k")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wanted DeadlineExceeded, got %v", err)
	}
	unlock()

	// Concurrent holders of one key
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			unlock, err := l.Lock(context.Background(), "shared")
			if err != nil {
				return err
			}
			unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Unable to lock '%v'", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) != 0 {
		t.Errorf("wanted no entries after every lock was released, got %d", len(l.entries))
	}
}

func TestInMemoryUnlockTwice(t *testing.T) {
	l := NewInMemoryLocker()
	unlock, _ := l.Lock(context.Background(), "k")
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := l.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("key should be free after unlock '%v'", err)
	}
	unlock()
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	l := NewRedisLocker(Config{Addr: mr.Addr(), TTL: 10 * time.Second})
	defer l.Close()

	if err := l.Ping(context.Background()); err != nil {
		t.Fatalf("Unable to ping redis '%v'", err)
	}
	exerciseLocker(t, l)
}

func TestRedisLockerExpiry(t *testing.T) {
	// A holder that never unlocks loses the key after the TTL, and its late
	// unlock must not release the new holder's key

	mr := miniredis.RunT(t)
	l := NewRedisLocker(Config{Addr: mr.Addr(), TTL: time.Second})
	defer l.Close()

	staleUnlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Unable to lock '%v'", err)
	}
	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Unable to take expired key '%v'", err)
	}
	staleUnlock()
	if !mr.Exists(l.makeKey("k")) {
		t.Errorf("stale unlock released someone else's key")
	}
	unlock()
	if mr.Exists(l.makeKey("k")) {
		t.Errorf("key still held after unlock")
	}
}
