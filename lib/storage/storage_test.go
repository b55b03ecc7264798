package storage_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ariesdevil/aerospike-server/lib/storage"
)

func newTestStore(t *testing.T) (*storage.Store, *storage.Namespace, *storage.Namespace) {
	t.Helper()

	mem, err := storage.NewNamespace(storage.NamespaceConfig{
		Name: "cache",
		Kind: storage.EngineMemory,
	})
	if err != nil {
		t.Fatalf("failed to create memory namespace: %v", err)
	}

	dev, err := storage.NewNamespace(storage.NamespaceConfig{
		Name: "bulk",
		Kind: storage.EngineDevice,
		Device: storage.DeviceConfig{
			Path:           filepath.Join(t.TempDir(), "bulk.dat"),
			FileSizeBytes:  64*1024 + 64*4096,
			WriteBlockSize: 4096,
		},
	})
	if err != nil {
		t.Fatalf("failed to create device namespace: %v", err)
	}

	store := storage.New([]*storage.Namespace{mem, dev})
	store.Init()

	t.Cleanup(func() {
		dev.Destroy()
		mem.Destroy()
	})

	return store, mem, dev
}

func TestStoreNamespaceLookup(t *testing.T) {
	store, mem, dev := newTestStore(t)

	if got := store.Namespace("cache"); got != mem {
		t.Errorf("lookup of cache returned %v", got)
	}
	if got := store.Namespace("bulk"); got != dev {
		t.Errorf("lookup of bulk returned %v", got)
	}
	if got := store.Namespace("missing"); got != nil {
		t.Errorf("lookup of a missing namespace returned %v", got)
	}
	if len(store.Namespaces()) != 2 {
		t.Errorf("store holds %d namespaces, want 2", len(store.Namespaces()))
	}
}

func TestStoreLockForIsStable(t *testing.T) {
	store, _, _ := newTestStore(t)

	d := storage.NewDigest("s", []byte("stable"))
	if store.LockFor(&d) != store.LockFor(&d) {
		t.Errorf("same digest mapped to different locks")
	}
}

// Shutdown must drain the record locks before flushing, so a write holding
// its lock either completes fully before the flush or never starts. The
// device namespace ends up flushed and trusted; the memory namespace is
// skipped.
func TestStoreShutdownSequence(t *testing.T) {
	store, mem, dev := newTestStore(t)

	// Writers running under record locks while shutdown starts.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}

				key := []byte(fmt.Sprintf("w%d-%d", g, i))
				r := &storage.Record{Digest: storage.NewDigest("s", key)}

				mu := store.LockFor(&r.Digest)
				mu.Lock()

				rd, err := storage.RecordCreate(dev, r)
				if err != nil {
					mu.Unlock()
					return
				}
				rd.Bins = []storage.Bin{{Name: "v", Particle: key}}
				rd.NumBins = 1
				if err := rd.Write(); err != nil {
					rd.Close()
					mu.Unlock()
					return
				}
				rd.Close()
				mu.Unlock()
			}
		}(g)
	}

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	store.Shutdown()

	if !store.Locks().Drained() {
		t.Errorf("record locks not drained after shutdown")
	}
	if !dev.XmemTrusted() {
		t.Errorf("device namespace not marked trusted after clean shutdown")
	}
	if mem.XmemTrusted() {
		t.Errorf("memory namespace marked trusted - it has nothing durable")
	}
}

// WaitForDefrag must return on an idle store - the backlog is empty.
func TestStoreWaitForDefrag(t *testing.T) {
	store, _, _ := newTestStore(t)

	done := make(chan struct{})
	go func() {
		store.WaitForDefrag()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("wait-for-defrag did not return on an idle store")
	}
}

// A write that raced the shutdown drain and lost must stay blocked on its
// record lock - the barrier is one-way.
func TestStoreShutdownBlocksLateWriters(t *testing.T) {
	store, _, dev := newTestStore(t)

	store.Shutdown()

	acquired := make(chan struct{})
	go func() {
		r := &storage.Record{Digest: storage.NewDigest("s", []byte("too-late"))}
		store.LockFor(&r.Digest).Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Errorf("late writer acquired a record lock after shutdown")
	case <-time.After(50 * time.Millisecond):
	}

	// Reads that do not take record locks still work against flushed state.
	if avail, _ := dev.Stats(); avail < 0 || avail > 100 {
		t.Errorf("post-shutdown stats out of range: %d", avail)
	}
}

// The loading ticker fires while an engine has not signaled readiness.
type slowEngine struct {
	storage.NoopEngine

	ticks  chan struct{}
	signal chan struct{}
}

func (e *slowEngine) InitNamespace(ns *storage.Namespace, complete chan<- *storage.Namespace) error {
	go func() {
		<-e.signal
		complete <- ns
	}()
	return nil
}

func (e *slowEngine) LoadingTicker(ns *storage.Namespace) {
	select {
	case e.ticks <- struct{}{}:
	default:
	}
}

func TestStoreInitPollsSlowEngine(t *testing.T) {
	engine := &slowEngine{
		ticks:  make(chan struct{}, 16),
		signal: make(chan struct{}),
	}

	ns := storage.NewNamespaceWithEngine("slow", engine)
	store := storage.New([]*storage.Namespace{ns})

	done := make(chan struct{})
	go func() {
		store.Init()
		close(done)
	}()

	// The initializer must poll progress, not return, while init is pending.
	select {
	case <-engine.ticks:
	case <-done:
		t.Fatalf("init returned before the engine signaled readiness")
	case <-time.After(10 * time.Second):
		t.Fatalf("loading ticker never fired for a slow engine")
	}

	close(engine.signal)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("init did not return after the engine signaled readiness")
	}
}
