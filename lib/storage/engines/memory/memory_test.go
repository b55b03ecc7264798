package memory_test

import (
	"testing"

	"github.com/ariesdevil/aerospike-server/lib/storage"
	enginetest "github.com/ariesdevil/aerospike-server/lib/storage/testing"
)

func newMemoryNamespace(tb testing.TB) *storage.Namespace {
	ns, err := storage.NewNamespace(storage.NamespaceConfig{
		Name: "test",
		Kind: storage.EngineMemory,
	})
	if err != nil {
		tb.Fatalf("failed to create namespace: %v", err)
	}
	return ns
}

func TestMemoryEngine(t *testing.T) {
	enginetest.RunEngineTests(t, "memory", newMemoryNamespace)
}

// Memory namespaces always mirror data in memory, even when the config
// says otherwise.
func TestMemoryForcesDataInMemory(t *testing.T) {
	ns, err := storage.NewNamespace(storage.NamespaceConfig{
		Name:         "test",
		Kind:         storage.EngineMemory,
		DataInMemory: false,
	})
	if err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	if !ns.DataInMemory {
		t.Errorf("memory namespace must have data-in-memory forced on")
	}
}

func TestMemoryStatsAlwaysAvailable(t *testing.T) {
	ns := newMemoryNamespace(t)

	avail, used := ns.Stats()
	if avail != 100 {
		t.Errorf("expected 100%% available, got %d", avail)
	}
	if used != 0 {
		t.Errorf("expected 0 used device bytes, got %d", used)
	}
}
