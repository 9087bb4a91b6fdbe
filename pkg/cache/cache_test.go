package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTimed(t *testing.T) {
	c := NewTimed(5 * time.Minute)

	tstart := time.Now()

	c.set("abc123.repl.co", []byte("<html>"), tstart)

	_, ok := c.get("abc123.repl.co", tstart.Add(time.Minute))
	if !ok {
		t.Errorf("failed to get key that should not be expired")
	}

	_, ok = c.get("abc123.repl.co", tstart.Add(10*time.Minute))
	if ok {
		t.Errorf("succeeded in getting expired key")
	}

	_, ok = c.get("abc123.repl.co", tstart.Add(time.Minute))
	if ok {
		t.Errorf("succeeded in getting key that was previously evicted")
	}
	if c.Len() != 0 {
		t.Errorf("expired key still held, len %d", c.Len())
	}
}

func TestTimedConcurrent(t *testing.T) {
	c := NewTimed(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("host-%d", i%4)
			c.Set(key, []byte(key))
			if v, ok := c.Get(key); ok && string(v) != key {
				t.Errorf("got %q for %q", v, key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 4 {
		t.Errorf("got %d keys, wanted 4", c.Len())
	}
}

func TestTimedBounded(t *testing.T) {
	c := NewTimedMax(time.Minute, 100)
	tstart := time.Now()

	// Distinct hosts that are never read again must not pile up.
	for i := 0; i < 5000; i++ {
		c.set(fmt.Sprintf("h%d.example", i), []byte("<html>"), tstart.Add(time.Duration(i)*time.Second))
		if c.Len() > 100 {
			t.Fatalf("len %d exceeds max after %d sets", c.Len(), i+1)
		}
	}

	// Everything set more than a minute before the last write was swept.
	now := tstart.Add(4999 * time.Second)
	if _, ok := c.get("h4999.example", now); !ok {
		t.Errorf("newest key was evicted")
	}
	if _, ok := c.get("h0.example", now); ok {
		t.Errorf("oldest key survived")
	}
}

func TestTimedEvictsOldest(t *testing.T) {
	c := NewTimedMax(time.Hour, 2)
	tstart := time.Now()

	c.set("a", []byte("a"), tstart)
	c.set("b", []byte("b"), tstart.Add(time.Second))
	// Overwriting an existing key never evicts.
	c.set("a", []byte("a2"), tstart.Add(2*time.Second))
	if c.Len() != 2 {
		t.Fatalf("got %d keys, wanted 2", c.Len())
	}

	c.set("c", []byte("c"), tstart.Add(3*time.Second))
	now := tstart.Add(4 * time.Second)
	if _, ok := c.get("b", now); ok {
		t.Errorf("oldest key b survived")
	}
	if v, ok := c.get("a", now); !ok || string(v) != "a2" {
		t.Errorf("got %q, %v for a", v, ok)
	}
	if _, ok := c.get("c", now); !ok {
		t.Errorf("newest key c was evicted")
	}
}
