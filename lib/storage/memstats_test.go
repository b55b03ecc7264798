package storage_test

import (
	"bytes"
	"testing"

	"github.com/ariesdevil/aerospike-server/lib/storage"
	_ "github.com/ariesdevil/aerospike-server/lib/storage/engines/device"
	_ "github.com/ariesdevil/aerospike-server/lib/storage/engines/memory"
)

func newAccountingNamespace(t *testing.T, singleBin bool) *storage.Namespace {
	t.Helper()

	ns, err := storage.NewNamespace(storage.NamespaceConfig{
		Name:      "accounting",
		Kind:      storage.EngineMemory,
		SingleBin: singleBin,
	})
	if err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	store := storage.New([]*storage.Namespace{ns})
	store.Init()

	return ns
}

// The full write-then-destroy cycle must leave the namespace and set
// counters at exactly zero - the accounting is signed and zero-sum.
func TestMemStatsZeroSum(t *testing.T) {
	ns := newAccountingNamespace(t, false)

	set := ns.RegisterSet("orders")
	key := []byte("order-1")

	r := &storage.Record{
		Digest:    storage.NewDigest("orders", key),
		SetID:     set.ID,
		KeyStored: true,
		Key:       key,
	}

	rd, err := storage.RecordCreate(ns, r)
	if err != nil {
		t.Fatalf("record create failed: %v", err)
	}

	rd.Bins = []storage.Bin{
		{Name: "total", Particle: []byte("99.95")},
		{Name: "items", Particle: bytes.Repeat([]byte{7}, 300)},
	}
	rd.NumBins = 2

	startBytes := rd.MemoryBytes()
	if startBytes != 0 {
		t.Fatalf("unwritten record has footprint %d", startBytes)
	}

	if err := rd.Write(); err != nil {
		t.Fatalf("record write failed: %v", err)
	}
	rd.AdjustMemStats(startBytes)

	if ns.BytesMemory() <= 0 {
		t.Fatalf("namespace counter %d after write, want positive", ns.BytesMemory())
	}
	if ns.BytesMemory() != set.BytesMemory() {
		t.Errorf("namespace counter %d and set counter %d diverge",
			ns.BytesMemory(), set.BytesMemory())
	}
	if err := rd.Close(); err != nil {
		t.Fatalf("descriptor close failed: %v", err)
	}

	// Destroy: drop the footprint exactly once, then release the record.
	rd, err = storage.RecordOpen(ns, r)
	if err != nil {
		t.Fatalf("record open failed: %v", err)
	}
	if err := rd.LoadBins(); err != nil {
		t.Fatalf("bin load failed: %v", err)
	}
	rd.DropFromMemStats()
	if err := rd.Close(); err != nil {
		t.Fatalf("descriptor close failed: %v", err)
	}
	if err := ns.DestroyRecord(r); err != nil {
		t.Fatalf("record destroy failed: %v", err)
	}

	if ns.BytesMemory() != 0 {
		t.Errorf("namespace counter %d after destroy, want 0", ns.BytesMemory())
	}
	if set.BytesMemory() != 0 {
		t.Errorf("set counter %d after destroy, want 0", set.BytesMemory())
	}
}

// An update's adjustment must be the signed delta between the old and new
// footprint, not a re-add of the whole record.
func TestMemStatsUpdateDelta(t *testing.T) {
	ns := newAccountingNamespace(t, false)

	r := &storage.Record{Digest: storage.NewDigest("s", []byte("delta"))}

	write := func(particle []byte) {
		rd, err := storage.RecordCreate(ns, r)
		if err != nil {
			t.Fatalf("record create failed: %v", err)
		}
		rd.Bins = []storage.Bin{{Name: "v", Particle: particle}}
		rd.NumBins = 1

		startBytes := rd.MemoryBytes()
		if err := rd.Write(); err != nil {
			t.Fatalf("record write failed: %v", err)
		}
		rd.AdjustMemStats(startBytes)
		if err := rd.Close(); err != nil {
			t.Fatalf("descriptor close failed: %v", err)
		}
	}

	write(bytes.Repeat([]byte{1}, 100))
	after100 := ns.BytesMemory()

	write(bytes.Repeat([]byte{1}, 400))
	after400 := ns.BytesMemory()

	if after400-after100 != 300 {
		t.Errorf("grow adjusted by %d, want 300", after400-after100)
	}

	write(bytes.Repeat([]byte{1}, 50))
	after50 := ns.BytesMemory()

	if after400-after50 != 350 {
		t.Errorf("shrink adjusted by %d, want -350", after50-after400)
	}
}

// Single-bin namespaces charge only particle bytes - no bin-space or key
// holder overheads.
func TestMemStatsSingleBin(t *testing.T) {
	ns := newAccountingNamespace(t, true)

	key := []byte("sb-key")
	r := &storage.Record{
		Digest:    storage.NewDigest("s", key),
		KeyStored: true,
		Key:       key,
	}

	rd, err := storage.RecordCreate(ns, r)
	if err != nil {
		t.Fatalf("record create failed: %v", err)
	}
	rd.Bins = []storage.Bin{{Name: "", Particle: bytes.Repeat([]byte{2}, 128)}}
	rd.NumBins = 1

	startBytes := rd.MemoryBytes()
	if err := rd.Write(); err != nil {
		t.Fatalf("record write failed: %v", err)
	}
	rd.AdjustMemStats(startBytes)
	defer rd.Close()

	if got := ns.BytesMemory(); got != 128 {
		t.Errorf("single-bin footprint %d, want 128 particle bytes", got)
	}
}

// Namespaces that do not mirror data in memory have no footprint at all.
func TestMemStatsNotInMemory(t *testing.T) {
	ns, err := storage.NewNamespace(storage.NamespaceConfig{
		Name: "cold",
		Kind: storage.EngineDevice,
		Device: storage.DeviceConfig{
			Path: "unused",
		},
	})
	if err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	r := &storage.Record{Digest: storage.NewDigest("s", []byte("cold"))}
	rd, err := storage.RecordCreate(ns, r)
	if err != nil {
		t.Fatalf("record create failed: %v", err)
	}
	defer rd.Close()

	rd.Bins = []storage.Bin{{Name: "v", Particle: bytes.Repeat([]byte{3}, 1024)}}
	rd.NumBins = 1

	if got := rd.MemoryBytes(); got != 0 {
		t.Errorf("footprint %d for a namespace without data in memory, want 0", got)
	}

	rd.AdjustMemStats(0)
	if ns.BytesMemory() != 0 {
		t.Errorf("counter moved for a namespace without data in memory")
	}
}
