package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/ddbx/lib/ddb/local"
)

// BackendFactory is a function that creates a new, empty Backend
type BackendFactory func() local.Backend

// RunBackendTests runs the conformance suite for a Backend implementation.
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("TableIsolation", func(t *testing.T) {
			testTableIsolation(t, factory())
		})

		t.Run("RangeOrder", func(t *testing.T) {
			testRangeOrder(t, factory())
		})

		t.Run("RangePrefix", func(t *testing.T) {
			testRangePrefix(t, factory())
		})

		t.Run("RangeStop", func(t *testing.T) {
			testRangeStop(t, factory())
		})

		t.Run("DropTable", func(t *testing.T) {
			testDropTable(t, factory())
		})

		t.Run("ConcurrentAccess", func(t *testing.T) {
			testConcurrentAccess(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustSet(t testing.TB, backend local.Backend, table, key string, value []byte) {
	t.Helper()
	if err := backend.Set(table, key, value); err != nil {
		t.Fatalf("Set(%s, %s) failed: %v", table, key, err)
	}
}

func collect(t testing.TB, backend local.Backend, table, prefix string) []string {
	t.Helper()
	var keys []string
	err := backend.Range(table, prefix, func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		t.Fatalf("Range(%s, %q) failed: %v", table, prefix, err)
	}
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, backend local.Backend) {
	defer backend.Close()

	value1 := []byte("value-1")
	value2 := []byte("value-2")

	mustSet(t, backend, "Orders", "k", value1)

	got, found, err := backend.Get("Orders", "k")
	if err != nil || !found {
		t.Fatalf("Expected key to exist after Set (found=%v, err=%v)", found, err)
	}
	if !bytes.Equal(got, value1) {
		t.Errorf("Expected value %s, got %s", value1, got)
	}

	mustSet(t, backend, "Orders", "k", value2)
	got, _, _ = backend.Get("Orders", "k")
	if !bytes.Equal(got, value2) {
		t.Errorf("Expected overwritten value %s, got %s", value2, got)
	}

	if _, found, _ = backend.Get("Orders", "missing"); found {
		t.Errorf("Expected missing key to return found=false")
	}
	if _, found, _ = backend.Get("NoSuchTable", "k"); found {
		t.Errorf("Expected key of unknown table to return found=false")
	}

	// returned values are copies
	got[0] = 'X'
	again, _, _ := backend.Get("Orders", "k")
	if !bytes.Equal(again, value2) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// stored values are copies
	input := []byte("mutable")
	mustSet(t, backend, "Orders", "m", input)
	input[0] = 'X'
	stored, _, _ := backend.Get("Orders", "m")
	if !bytes.Equal(stored, []byte("mutable")) {
		t.Errorf("Set should store a copy of the value, got %s", stored)
	}
}

func testDelete(t *testing.T, backend local.Backend) {
	defer backend.Close()

	mustSet(t, backend, "Orders", "k", []byte("v"))
	if err := backend.Delete("Orders", "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := backend.Get("Orders", "k"); found {
		t.Errorf("Key should not exist after Delete")
	}

	if err := backend.Delete("Orders", "never-set"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
	if err := backend.Delete("NoSuchTable", "k"); err != nil {
		t.Errorf("Deleting from a missing table should not fail: %v", err)
	}
}

func testTableIsolation(t *testing.T, backend local.Backend) {
	defer backend.Close()

	mustSet(t, backend, "A", "k", []byte("a"))
	mustSet(t, backend, "AB", "k", []byte("ab"))
	mustSet(t, backend, "B", "k", []byte("b"))

	got, _, _ := backend.Get("A", "k")
	if !bytes.Equal(got, []byte("a")) {
		t.Errorf("Expected value of table A, got %s", got)
	}

	// table names that are prefixes of each other must not leak into each other
	if keys := collect(t, backend, "A", ""); len(keys) != 1 {
		t.Errorf("Expected 1 key in table A, got %v", keys)
	}
}

func testRangeOrder(t *testing.T, backend local.Backend) {
	defer backend.Close()

	for _, k := range []string{"c", "a", "d", "b", "aa"} {
		mustSet(t, backend, "T", k, []byte(k))
	}

	keys := collect(t, backend, "T", "")
	want := []string{"a", "aa", "b", "c", "d"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Expected keys in order %v, got %v", want, keys)
	}

	// values belong to their keys
	err := backend.Range("T", "", func(key string, value []byte) bool {
		if string(value) != key {
			t.Errorf("Key %s has value %s", key, value)
		}
		return true
	})
	if err != nil {
		t.Errorf("Range failed: %v", err)
	}

	if keys := collect(t, backend, "Empty", ""); len(keys) != 0 {
		t.Errorf("Expected no keys for unknown table, got %v", keys)
	}
}

func testRangePrefix(t *testing.T, backend local.Backend) {
	defer backend.Close()

	for _, k := range []string{"1:Sa#1", "1:Sa#2", "1:Sb#1", "2:Sab#1"} {
		mustSet(t, backend, "T", k, []byte(k))
	}

	keys := collect(t, backend, "T", "1:Sa")
	if fmt.Sprint(keys) != fmt.Sprint([]string{"1:Sa#1", "1:Sa#2"}) {
		t.Errorf("Unexpected keys for prefix: %v", keys)
	}
	if keys := collect(t, backend, "T", "3:"); len(keys) != 0 {
		t.Errorf("Expected no keys for unmatched prefix, got %v", keys)
	}
}

func testRangeStop(t *testing.T, backend local.Backend) {
	defer backend.Close()

	for i := 0; i < 10; i++ {
		mustSet(t, backend, "T", fmt.Sprintf("k%02d", i), []byte{byte(i)})
	}

	visited := 0
	err := backend.Range("T", "", func(string, []byte) bool {
		visited++
		return visited < 3
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if visited != 3 {
		t.Errorf("Range should stop when fn returns false, visited %d", visited)
	}
}

func testDropTable(t *testing.T, backend local.Backend) {
	defer backend.Close()

	for i := 0; i < 5; i++ {
		mustSet(t, backend, "Drop", fmt.Sprintf("k%d", i), []byte("v"))
	}
	mustSet(t, backend, "Keep", "k", []byte("v"))

	if err := backend.DropTable("Drop"); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	if keys := collect(t, backend, "Drop", ""); len(keys) != 0 {
		t.Errorf("Expected dropped table to be empty, got %v", keys)
	}
	if _, found, _ := backend.Get("Keep", "k"); !found {
		t.Errorf("DropTable removed keys of another table")
	}

	// the table can be used again
	mustSet(t, backend, "Drop", "new", []byte("v"))
	if _, found, _ := backend.Get("Drop", "new"); !found {
		t.Errorf("Expected key in recreated table")
	}
}

func testConcurrentAccess(t *testing.T, backend local.Backend) {
	defer backend.Close()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-%03d", w, i)
				if err := backend.Set("T", key, []byte(key)); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				if v, found, err := backend.Get("T", key); err != nil || !found || string(v) != key {
					t.Errorf("Get(%s) = %s, %v, %v", key, v, found, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if keys := collect(t, backend, "T", ""); len(keys) != workers*perWorker {
		t.Errorf("Expected %d keys, got %d", workers*perWorker, len(keys))
	}
}
