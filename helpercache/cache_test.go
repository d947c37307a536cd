package helpercache

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type item struct{ name string }

type switchKey struct {
	Kind  string
	Cases []string
}

func TestKeyOfIsStructural(t *testing.T) {
	a, err := KeyOf(switchKey{Kind: "s", Cases: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := KeyOf(switchKey{Kind: "s", Cases: []string{"a", "b"}})
	c, _ := KeyOf(switchKey{Kind: "s", Cases: []string{"b", "a"}})
	if a != b {
		t.Error("equal keys hash differently")
	}
	if a == c {
		t.Error("different keys hash equally")
	}
	m1, _ := KeyOf(map[string]int{"x": 1, "y": 2})
	m2, _ := KeyOf(map[string]int{"y": 2, "x": 1})
	if m1 != m2 {
		t.Error("map key encoding is not canonical")
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[item]("test")
	calls := 0
	create := func() (*item, error) {
		calls++
		return &item{name: "one"}, nil
	}
	v1, err := c.GetOrCreate("k", create)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := c.GetOrCreate("k", create)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 {
		t.Error("second lookup returned a different value")
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	if got, ok, _ := c.Get("k"); !ok || got != v1 {
		t.Error("Get missed a live entry")
	}
	runtime.KeepAlive(v1)
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New[item]("test")
	boom := errors.New("boom")
	if _, err := c.GetOrCreate("k", func() (*item, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	v, err := c.GetOrCreate("k", func() (*item, error) { return &item{}, nil })
	if err != nil || v == nil {
		t.Fatalf("retry failed: %v", err)
	}
	runtime.KeepAlive(v)
}

func TestNilValueRejected(t *testing.T) {
	c := New[item]("test")
	if _, err := c.GetOrCreate("k", func() (*item, error) { return nil, nil }); err == nil {
		t.Error("expected an error for a nil value")
	}
}

func TestConcurrentCreateRunsOnce(t *testing.T) {
	c := New[item]("test")
	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]*item, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCreate("shared", func() (*item, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return &item{name: "shared"}, nil
			})
			if err != nil {
				t.Error(err)
			}
			results[i] = v
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("create ran %d times, want 1", n)
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatal("callers received different values")
		}
	}
	runtime.KeepAlive(results)
}

func TestCollectedEntriesAreEvicted(t *testing.T) {
	c := New[item]("test")
	func() {
		v, err := c.GetOrCreate("gone", func() (*item, error) { return &item{name: "gone"}, nil })
		if err != nil || v == nil {
			t.Fatal(err)
		}
	}()
	deadline := time.Now().Add(5 * time.Second)
	for c.Len() > 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(time.Millisecond)
	}
	if n := c.Len(); n != 0 {
		t.Skipf("entry not collected yet (%d left)", n)
	}
	if _, ok, _ := c.Get("gone"); ok {
		t.Error("collected entry still returned")
	}
}
