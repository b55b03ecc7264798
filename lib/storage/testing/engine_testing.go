package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ariesdevil/aerospike-server/lib/storage"
)

// NamespaceFactory creates a fresh, un-initialized namespace bound to the
// engine under test.
type NamespaceFactory func(tb testing.TB) *storage.Namespace

// RunEngineTests runs the conformance suite for a storage engine
// implementation.
func RunEngineTests(t *testing.T, name string, factory NamespaceFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Init", func(t *testing.T) {
			testInit(t, factory)
		})

		t.Run("WriteRead", func(t *testing.T) {
			testWriteRead(t, factory)
		})

		t.Run("Rewrite", func(t *testing.T) {
			testRewrite(t, factory)
		})

		t.Run("NumBinsWithoutValues", func(t *testing.T) {
			testNumBinsWithoutValues(t, factory)
		})

		t.Run("KeyStorage", func(t *testing.T) {
			testKeyStorage(t, factory)
		})

		t.Run("DestroyRecord", func(t *testing.T) {
			testDestroyRecord(t, factory)
		})

		t.Run("PartitionInfo", func(t *testing.T) {
			testPartitionInfo(t, factory)
		})

		t.Run("CapacityDefaults", func(t *testing.T) {
			testCapacityDefaults(t, factory)
		})

		t.Run("Stats", func(t *testing.T) {
			testStats(t, factory)
		})

		t.Run("DescriptorAfterClose", func(t *testing.T) {
			testDescriptorAfterClose(t, factory)
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			testConcurrentWrites(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// initNamespace builds a single-namespace store, runs engine init and
// registers teardown.
func initNamespace(tb testing.TB, factory NamespaceFactory) *storage.Namespace {
	ns := factory(tb)

	store := storage.New([]*storage.Namespace{ns})
	store.Init()

	tb.Cleanup(func() {
		if err := ns.Destroy(); err != nil {
			tb.Errorf("namespace teardown failed: %v", err)
		}
	})

	return ns
}

// writeRecord runs a full create-cycle for the given bins.
func writeRecord(tb testing.TB, ns *storage.Namespace, r *storage.Record, bins []storage.Bin) {
	tb.Helper()

	rd, err := storage.RecordCreate(ns, r)
	if err != nil {
		tb.Fatalf("record create failed: %v", err)
	}

	rd.Bins = bins
	rd.NumBins = uint16(len(bins))

	// On a write the key comes with the request, not from storage.
	if r.KeyStored {
		rd.Key = r.Key
	}

	// Rec-props count toward the flat size; stage before checking.
	rd.StageRecProps()

	if !rd.SizeAndCheck() {
		tb.Fatalf("record unexpectedly failed size check")
	}

	startBytes := rd.MemoryBytes()
	if err := rd.Write(); err != nil {
		tb.Fatalf("record write failed: %v", err)
	}
	rd.AdjustMemStats(startBytes)

	if err := rd.Close(); err != nil {
		tb.Fatalf("descriptor close failed: %v", err)
	}
}

// readBins runs a full open-cycle and returns the record's bins.
func readBins(tb testing.TB, ns *storage.Namespace, r *storage.Record) []storage.Bin {
	tb.Helper()

	rd, err := storage.RecordOpen(ns, r)
	if err != nil {
		tb.Fatalf("record open failed: %v", err)
	}

	if err := rd.LoadBins(); err != nil {
		tb.Fatalf("bin load failed: %v", err)
	}

	bins := rd.Bins

	if err := rd.Close(); err != nil {
		tb.Fatalf("descriptor close failed: %v", err)
	}

	return bins
}

func sameBins(a, b []storage.Bin) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !bytes.Equal(a[i].Particle, b[i].Particle) {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

// Engine init must signal namespace completion (via store init returning)
// and leave the namespace writable.
func testInit(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	r := &storage.Record{Digest: storage.NewDigest("", []byte("init-probe"))}
	writeRecord(t, ns, r, []storage.Bin{{Name: "b", Particle: []byte("v")}})
}

func testWriteRead(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	bins := []storage.Bin{
		{Name: "name", Particle: []byte("otis")},
		{Name: "age", Particle: []byte{42}},
		{Name: "blob", Particle: bytes.Repeat([]byte{0xAB}, 1024)},
	}

	r := &storage.Record{Digest: storage.NewDigest("people", []byte("otis"))}
	writeRecord(t, ns, r, bins)

	got := readBins(t, ns, r)
	if !sameBins(bins, got) {
		t.Errorf("read-back bins differ: got %d bins, want %d", len(got), len(bins))
	}
}

// A rewrite must fully replace the stored bins; readers never see a blend
// of old and new.
func testRewrite(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	r := &storage.Record{Digest: storage.NewDigest("s", []byte("rewrite-me"))}
	writeRecord(t, ns, r, []storage.Bin{
		{Name: "a", Particle: []byte("one")},
		{Name: "b", Particle: []byte("two")},
	})

	updated := []storage.Bin{{Name: "a", Particle: []byte("replaced")}}
	writeRecord(t, ns, r, updated)

	got := readBins(t, ns, r)
	if !sameBins(updated, got) {
		t.Errorf("rewrite not fully visible: got %v", got)
	}
}

func testNumBinsWithoutValues(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	bins := []storage.Bin{
		{Name: "x", Particle: []byte("1")},
		{Name: "y", Particle: []byte("2")},
	}

	r := &storage.Record{Digest: storage.NewDigest("s", []byte("count-bins"))}
	writeRecord(t, ns, r, bins)

	rd, err := storage.RecordOpen(ns, r)
	if err != nil {
		t.Fatalf("record open failed: %v", err)
	}
	defer rd.Close()

	if err := rd.LoadNumBins(); err != nil {
		t.Fatalf("bin count load failed: %v", err)
	}

	if rd.NumBins != 2 {
		t.Errorf("expected 2 bins, got %d", rd.NumBins)
	}
	if rd.Bins != nil {
		t.Errorf("bin count load must not materialize bin values")
	}
}

// A record written with a stored key must yield that key on a later open,
// whether served from the in-memory copy or the device.
func testKeyStorage(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	key := []byte("user-key-7")
	r := &storage.Record{
		Digest:    storage.NewDigest("users", key),
		KeyStored: true,
		Key:       key,
	}
	writeRecord(t, ns, r, []storage.Bin{{Name: "b", Particle: []byte("v")}})

	rd, err := storage.RecordOpen(ns, r)
	if err != nil {
		t.Fatalf("record open failed: %v", err)
	}
	defer rd.Close()

	found, err := rd.ResolveKey()
	if err != nil {
		t.Fatalf("key resolution failed: %v", err)
	}
	if !found {
		t.Fatalf("stored key not found on open")
	}
	if !bytes.Equal(rd.Key, key) {
		t.Errorf("resolved key %q, want %q", rd.Key, key)
	}
}

func testDestroyRecord(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	r := &storage.Record{Digest: storage.NewDigest("s", []byte("doomed"))}
	writeRecord(t, ns, r, []storage.Bin{{Name: "b", Particle: []byte("v")}})

	if err := ns.DestroyRecord(r); err != nil {
		t.Fatalf("record destroy failed: %v", err)
	}

	// Idempotent: a second destroy of the same record is a no-op.
	if err := ns.DestroyRecord(r); err != nil {
		t.Errorf("repeated destroy must not fail: %v", err)
	}

	if _, err := storage.RecordOpen(ns, r); err == nil {
		t.Errorf("open after destroy must fail")
	} else if storage.CodeOf(err) != storage.RetCNotFound {
		t.Errorf("open after destroy returned %v, want not-found", err)
	}
}

func testPartitionInfo(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	want := storage.PartitionInfo{Version: 7, State: 2}
	ns.InfoSet(42, want, false)

	got, ok := ns.InfoGet(42)
	if !ok {
		t.Fatalf("partition info not readable after set")
	}
	if got != want {
		t.Errorf("partition info round trip: got %+v, want %+v", got, want)
	}

	if err := ns.InfoFlush(); err != nil {
		t.Errorf("partition info flush failed: %v", err)
	}
}

// A freshly initialized namespace is neither overloaded nor out of space.
func testCapacityDefaults(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	if ns.Overloaded() {
		t.Errorf("fresh namespace reports overloaded")
	}
	if !ns.HasSpace() {
		t.Errorf("fresh namespace reports no space")
	}

	// Defrag on an empty namespace completes immediately.
	ns.DefragSweep()
	ns.WaitForDefrag()
}

func testStats(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	availBefore, _ := ns.Stats()
	if availBefore < 0 || availBefore > 100 {
		t.Fatalf("available pct out of range: %d", availBefore)
	}

	for i := 0; i < 32; i++ {
		r := &storage.Record{Digest: storage.NewDigest("s", []byte(fmt.Sprintf("stat-%d", i)))}
		writeRecord(t, ns, r, []storage.Bin{
			{Name: "payload", Particle: bytes.Repeat([]byte{1}, 512)},
		})
	}

	if err := ns.TickerStats(); err != nil {
		t.Errorf("ticker stats failed: %v", err)
	}
	if err := ns.HistogramClearAll(); err != nil {
		t.Errorf("histogram clear failed: %v", err)
	}
}

func testDescriptorAfterClose(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	r := &storage.Record{Digest: storage.NewDigest("s", []byte("close-me"))}
	writeRecord(t, ns, r, []storage.Bin{{Name: "b", Particle: []byte("v")}})

	rd, err := storage.RecordOpen(ns, r)
	if err != nil {
		t.Fatalf("record open failed: %v", err)
	}
	if err := rd.Close(); err != nil {
		t.Fatalf("descriptor close failed: %v", err)
	}

	if err := rd.LoadBins(); storage.CodeOf(err) != storage.RetCDescriptorClosed {
		t.Errorf("load after close returned %v, want descriptor-closed", err)
	}
	if err := rd.Write(); storage.CodeOf(err) != storage.RetCDescriptorClosed {
		t.Errorf("write after close returned %v, want descriptor-closed", err)
	}
	if err := rd.Close(); storage.CodeOf(err) != storage.RetCDescriptorClosed {
		t.Errorf("double close returned %v, want descriptor-closed", err)
	}
}

func testConcurrentWrites(t *testing.T, factory NamespaceFactory) {
	ns := initNamespace(t, factory)

	const (
		goroutines = 8
		perG       = 64
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				key := []byte(fmt.Sprintf("g%d-r%d", g, i))
				r := &storage.Record{Digest: storage.NewDigest("load", key)}
				writeRecord(t, ns, r, []storage.Bin{
					{Name: "v", Particle: key},
				})

				got := readBins(t, ns, r)
				if len(got) != 1 || !bytes.Equal(got[0].Particle, key) {
					t.Errorf("concurrent read-back mismatch for %s", key)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}
