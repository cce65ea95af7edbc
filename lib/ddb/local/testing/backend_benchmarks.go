package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/ddbx/lib/ddb/local"
)

// RunBackendBenchmarks runs all benchmarks for a Backend implementation
func RunBackendBenchmarks(b *testing.B, name string, factory BackendFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("RangePrefix", func(b *testing.B) {
			benchmarkRangePrefix(b, factory())
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, backend local.Backend) {
	b.Cleanup(func() {
		backend.Close()
	})

	value := make([]byte, 256)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := backend.Set("T", fmt.Sprintf("key-%d", counter), value); err != nil {
				b.Error(err)
			}
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, backend local.Backend) {
	b.Cleanup(func() {
		backend.Close()
	})

	const numKeys = 1000
	for i := 0; i < numKeys; i++ {
		_ = backend.Set("T", fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			if _, _, err := backend.Get("T", fmt.Sprintf("key-%d", r.Intn(numKeys))); err != nil {
				b.Error(err)
			}
		}
	})
}

func benchmarkRangePrefix(b *testing.B, backend local.Backend) {
	b.Cleanup(func() {
		backend.Close()
	})

	// 100 hash keys with 20 range keys each
	for h := 0; h < 100; h++ {
		for r := 0; r < 20; r++ {
			_ = backend.Set("T", fmt.Sprintf("h%03d#%03d", h, r), []byte("v"))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		count := 0
		err := backend.Range("T", fmt.Sprintf("h%03d#", i%100), func(string, []byte) bool {
			count++
			return true
		})
		if err != nil || count != 20 {
			b.Fatalf("Range returned %d keys (err %v)", count, err)
		}
	}
}

func benchmarkMixedUsage(b *testing.B, backend local.Backend) {
	b.Cleanup(func() {
		backend.Close()
	})

	const numKeys = 1000
	value := make([]byte, 128)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := fmt.Sprintf("key-%d", r.Intn(numKeys))
			switch op := r.Intn(10); {
			case op < 6:
				_, _, _ = backend.Get("T", key)
			case op < 9:
				_ = backend.Set("T", key, value)
			default:
				_ = backend.Delete("T", key)
			}
		}
	})
}
