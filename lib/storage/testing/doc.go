// Package testing provides a standardised conformance suite for storage
// engine implementations behind the storage.Engine interface.
//
// The suite exercises the full record usage cycle (create, open, load,
// write, close), key storage, record destruction, partition metadata and
// the capacity defaults every engine must honor.
//
// Example usage:
//
//	factory := func(tb testing.TB) *storage.Namespace {
//		ns, err := storage.NewNamespace(storage.NamespaceConfig{
//			Name: "test",
//			Kind: storage.EngineMemory,
//		})
//		if err != nil {
//			tb.Fatal(err)
//		}
//		return ns
//	}
//
//	testing.RunEngineTests(t, "memory", factory)
package testing
