// Package testing provides standardised tests and benchmarks for
// storage engines that satisfy the local.Backend interface.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() local.Backend {
//		return NewMyBackend()
//	}
//
//	// Running the standard test suite
//	testing.RunBackendTests(t, "MyBackend", factory)
//
//	// Running performance benchmarks
//	testing.RunBackendBenchmarks(b, "MyBackend", factory)
package testing
