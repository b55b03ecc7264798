package storage

import (
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("storage")

// loadTickerInterval is how long the namespace initializer waits on the
// completion channel before invoking the progress-reporting hook. This is
// a periodic poll while a single wait continues, not a retry.
const loadTickerInterval = 2 * time.Second

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store owns the configured namespaces and the global record lock table,
// and sequences storage startup and shutdown around them. One Store exists
// for the server's lifetime.
type Store struct {
	namespaces []*Namespace
	locks      *LockTable
}

// New creates a store over the given namespaces with a lock table of the
// default size.
func New(namespaces []*Namespace) *Store {
	return NewWithLocks(namespaces, NewLockTable(DefaultLockCount))
}

// NewWithLocks creates a store with a caller-supplied lock table.
func NewWithLocks(namespaces []*Namespace, locks *LockTable) *Store {
	return &Store{
		namespaces: namespaces,
		locks:      locks,
	}
}

// Namespaces returns the configured namespaces.
func (s *Store) Namespaces() []*Namespace {
	return s.namespaces
}

// Namespace looks a namespace up by name, nil if not configured.
func (s *Store) Namespace(name string) *Namespace {
	for _, ns := range s.namespaces {
		if ns.Name == name {
			return ns
		}
	}
	return nil
}

// Locks returns the global record lock table.
func (s *Store) Locks() *LockTable {
	return s.locks
}

// LockFor returns the record-level lock guarding a digest.
func (s *Store) LockFor(d *Digest) *sync.Mutex {
	return s.locks.Get(d)
}

// --------------------------------------------------------------------------
// Namespace Initializer
// --------------------------------------------------------------------------

// Init invokes every namespace engine's init and blocks until each signals
// readiness. Engines may load in the background and signal later; while a
// namespace has not signaled, the wait wakes every loadTickerInterval to
// invoke the engines' progress hooks, so long-running loads stay
// observable. There is no timeout-and-fail path - engines must eventually
// signal.
//
// Any init failure is an unrecoverable configuration error and panics -
// storage misconfiguration must abort process startup, never default
// silently.
func (s *Store) Init() {
	complete := make(chan *Namespace, len(s.namespaces))

	for _, ns := range s.namespaces {
		if err := ns.engine.InitNamespace(ns, complete); err != nil {
			Logger.Panicf("could not initialize storage for namespace %s: %v", ns.Name, err)
		}
	}

	for range s.namespaces {
	wait:
		for {
			select {
			case ns := <-complete:
				Logger.Infof("{%s} storage initialized", ns.Name)
				break wait
			case <-time.After(loadTickerInterval):
				for _, ns := range s.namespaces {
					ns.engine.LoadingTicker(ns)
				}
			}
		}
	}
}

// StartTombRaiders begins background tombstone reclamation for every
// namespace whose engine supports it.
func (s *Store) StartTombRaiders() {
	for _, ns := range s.namespaces {
		ns.engine.StartTombRaider(ns)
	}
}

// WaitForDefrag blocks until every namespace's defragmentation backlog has
// cleared. Typically called once after Init, before serving writes.
func (s *Store) WaitForDefrag() {
	for _, ns := range s.namespaces {
		ns.engine.WaitForDefrag(ns)
	}
}

// --------------------------------------------------------------------------
// Shutdown Sequencer
// --------------------------------------------------------------------------

// Shutdown runs the two-phase storage shutdown barrier.
//
// Phase 1 drains: every record lock is acquired in index order and never
// released, so each in-flight write's lock scope is either completed or
// never entered - no write is torn mid-flight.
//
// Phase 2 flushes: every device-backed namespace seals its partitions,
// runs the engine's shutdown flush, and marks shared memory trusted for a
// warm restart. Pure in-memory namespaces have nothing durable to flush
// and are skipped.
//
// Shutdown is not allowed to fail; engine-level flush errors are logged by
// the engine layer and do not abort the sequence. Process exit follows.
func (s *Store) Shutdown() {
	Logger.Infof("initiating storage shutdown ...")

	s.locks.DrainAll()

	Logger.Infof("flushing data to storage ...")

	for _, ns := range s.namespaces {
		if ns.Kind != EngineDevice {
			continue
		}

		for pid := uint32(0); pid < NumPartitions; pid++ {
			ns.PartitionShutdown(pid)
		}

		ns.engine.Shutdown(ns)
		ns.MarkXmemTrusted()
	}

	Logger.Infof("completed flushing to storage")
}
