package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// NumPartitions is the fixed partition count of every namespace.
const NumPartitions = 4096

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// DeviceConfig holds the device-backed engine's tunables. Ignored by the
// in-memory engine.
type DeviceConfig struct {
	// Path is the backing device file.
	Path string

	// FileSizeBytes is the fixed capacity of the backing file.
	FileSizeBytes int64

	// WriteBlockSize caps the flat size of a single record and sizes the
	// buffered write blocks.
	WriteBlockSize int

	// MaxWriteCacheBytes bounds the write-back queue; beyond it the engine
	// reports itself overloaded.
	MaxWriteCacheBytes int

	// MinAvailPct is the worst-device available percentage below which
	// HasSpace reports false.
	MinAvailPct int

	// DefragLowWaterPct marks blocks whose used fraction fell below this
	// percentage as defrag candidates.
	DefragLowWaterPct int

	// TombRaiderPeriodSec is the sleep between tomb-raider sweeps.
	TombRaiderPeriodSec int
}

// NamespaceConfig is the per-namespace configuration the storage layer
// consumes. Parsed from flags/env by the cmd layer.
type NamespaceConfig struct {
	Name string
	Kind EngineKind

	// DataInMemory mirrors bin data in memory even when device-backed.
	// Always true for the in-memory kind.
	DataInMemory bool

	// SingleBin disables multi-bin bookkeeping (no per-record bin space,
	// no stored-key memory overhead).
	SingleBin bool

	Device DeviceConfig
}

// --------------------------------------------------------------------------
// Set
// --------------------------------------------------------------------------

// Set tracks one set's name and memory accounting within a namespace.
type Set struct {
	ID   uint16
	Name string

	bytesMemory *xsync.Counter
}

// BytesMemory returns the set's current in-memory byte count.
func (s *Set) BytesMemory() int64 {
	return s.bytesMemory.Value()
}

// --------------------------------------------------------------------------
// Namespace
// --------------------------------------------------------------------------

// Namespace is a configured data container. Owned process-wide for the
// server's lifetime; mutated by every record operation; destroyed only at
// process shutdown.
type Namespace struct {
	Name string
	Kind EngineKind

	DataInMemory bool
	SingleBin    bool
	Device       DeviceConfig

	// engine is bound once at configuration time and never swapped.
	engine Engine

	// bytesMemory is exact per individual add/subtract, eventually
	// consistent across the whole namespace.
	bytesMemory *xsync.Counter

	// sets maps set id to accounting state. Set ids are assigned by the
	// set registry collaborator; RegisterSet covers the storage layer's
	// own needs.
	sets      *xsync.MapOf[uint16, *Set]
	setsByN   *xsync.MapOf[string, *Set]
	nextSetID atomic.Uint32

	// partitions is the in-process partition version/state table. Engines
	// persist it via the info operations.
	partMu     sync.Mutex
	partitions [NumPartitions]PartitionInfo

	evictVoidTime atomic.Uint32
	xmemTrusted   atomic.Bool
	recordsLoaded atomic.Uint64

	// operation metrics
	writeCount   *metrics.Counter
	readCount    *metrics.Counter
	destroyCount *metrics.Counter
}

// PartitionInfo is the fixed-shape per-partition persisted metadata record
// exchanged with engines.
type PartitionInfo struct {
	Version uint64
	State   uint8
}

// NewNamespace builds a namespace and binds its engine. An unrecognized
// engine kind is a configuration error - the caller must abort startup,
// never default silently.
func NewNamespace(cfg NamespaceConfig) (*Namespace, error) {
	if cfg.Name == "" {
		return nil, NewError(RetCBadConfig, "namespace name must not be empty")
	}
	if !cfg.Kind.Valid() {
		return nil, NewError(RetCBadConfig,
			fmt.Sprintf("invalid storage engine kind %q for namespace %s", cfg.Kind, cfg.Name))
	}

	engine, err := newEngine(cfg.Kind)
	if err != nil {
		return nil, err
	}

	// The in-memory kind has no device copy to fall back to.
	dataInMemory := cfg.DataInMemory || cfg.Kind == EngineMemory

	ns := &Namespace{
		Name:         cfg.Name,
		Kind:         cfg.Kind,
		DataInMemory: dataInMemory,
		SingleBin:    cfg.SingleBin,
		Device:       cfg.Device,
		engine:       engine,
		bytesMemory:  xsync.NewCounter(),
		sets:         xsync.NewMapOf[uint16, *Set](),
		setsByN:      xsync.NewMapOf[string, *Set](),
		writeCount: metrics.GetOrCreateCounter(
			fmt.Sprintf(`storage_record_writes_total{namespace=%q}`, cfg.Name)),
		readCount: metrics.GetOrCreateCounter(
			fmt.Sprintf(`storage_record_reads_total{namespace=%q}`, cfg.Name)),
		destroyCount: metrics.GetOrCreateCounter(
			fmt.Sprintf(`storage_record_destroys_total{namespace=%q}`, cfg.Name)),
	}

	metrics.GetOrCreateGauge(
		fmt.Sprintf(`storage_memory_bytes{namespace=%q}`, cfg.Name),
		func() float64 { return float64(ns.bytesMemory.Value()) })

	return ns, nil
}

// NewNamespaceWithEngine builds a namespace around a caller-supplied engine,
// bypassing the kind registry. Intended for engine implementations' own
// tests and tooling.
func NewNamespaceWithEngine(name string, engine Engine) *Namespace {
	return &Namespace{
		Name:        name,
		engine:      engine,
		bytesMemory: xsync.NewCounter(),
		sets:        xsync.NewMapOf[uint16, *Set](),
		setsByN:     xsync.NewMapOf[string, *Set](),
		writeCount: metrics.GetOrCreateCounter(
			fmt.Sprintf(`storage_record_writes_total{namespace=%q}`, name)),
		readCount: metrics.GetOrCreateCounter(
			fmt.Sprintf(`storage_record_reads_total{namespace=%q}`, name)),
		destroyCount: metrics.GetOrCreateCounter(
			fmt.Sprintf(`storage_record_destroys_total{namespace=%q}`, name)),
	}
}

// --------------------------------------------------------------------------
// Memory Accounting State
// --------------------------------------------------------------------------

// BytesMemory returns the namespace's total in-memory byte count.
func (ns *Namespace) BytesMemory() int64 {
	return ns.bytesMemory.Value()
}

// AdjustSetMemory applies a signed delta to one set's byte counter. A zero
// or unknown set id is ignored (records in the default set carry no set
// accounting).
func (ns *Namespace) AdjustSetMemory(setID uint16, delta int64) {
	if setID == 0 {
		return
	}
	if set, ok := ns.sets.Load(setID); ok {
		set.bytesMemory.Add(delta)
	}
}

// RegisterSet returns the set for a name, creating it on first use.
func (ns *Namespace) RegisterSet(name string) *Set {
	if name == "" {
		return nil
	}
	set, _ := ns.setsByN.LoadOrCompute(name, func() *Set {
		s := &Set{
			ID:          uint16(ns.nextSetID.Add(1)),
			Name:        name,
			bytesMemory: xsync.NewCounter(),
		}
		ns.sets.Store(s.ID, s)
		return s
	})
	return set
}

// SetByID looks a set up by id, nil for the default set or an unknown id.
func (ns *Namespace) SetByID(id uint16) *Set {
	if id == 0 {
		return nil
	}
	set, _ := ns.sets.Load(id)
	return set
}

// SetName returns the set name for an id, "" for the default set.
func (ns *Namespace) SetName(id uint16) string {
	if set := ns.SetByID(id); set != nil {
		return set.Name
	}
	return ""
}

// --------------------------------------------------------------------------
// Partition State
// --------------------------------------------------------------------------

// PartitionInfoLocal returns the in-process partition version/state record.
func (ns *Namespace) PartitionInfoLocal(pid uint32) PartitionInfo {
	ns.partMu.Lock()
	defer ns.partMu.Unlock()
	return ns.partitions[pid]
}

// SetPartitionInfoLocal updates the in-process partition version/state
// record. Persisting it is the engine's business (InfoSet/InfoFlush).
func (ns *Namespace) SetPartitionInfoLocal(pid uint32, info PartitionInfo) {
	ns.partMu.Lock()
	defer ns.partMu.Unlock()
	ns.partitions[pid] = info
}

// PartitionShutdown seals one partition before the engine-level flush: the
// current in-process version/state is handed to the engine un-flushed (the
// engine's Shutdown performs the single final flush).
func (ns *Namespace) PartitionShutdown(pid uint32) {
	ns.engine.InfoSet(ns, pid, ns.PartitionInfoLocal(pid), false)
}

// --------------------------------------------------------------------------
// Restart State
// --------------------------------------------------------------------------

// MarkXmemTrusted marks the namespace's cross-process shared memory as
// trustworthy for a fast warm restart. Only meaningful for device-backed
// namespaces; called by the shutdown sequencer after a clean flush.
func (ns *Namespace) MarkXmemTrusted() {
	ns.xmemTrusted.Store(true)
}

// XmemTrusted reports whether a warm restart may trust shared memory.
func (ns *Namespace) XmemTrusted() bool {
	return ns.xmemTrusted.Load()
}

// AddRecordsLoaded advances the init-time progress counter.
func (ns *Namespace) AddRecordsLoaded(n uint64) {
	ns.recordsLoaded.Add(n)
}

// RecordsLoaded returns how many records initialization has loaded so far.
func (ns *Namespace) RecordsLoaded() uint64 {
	return ns.recordsLoaded.Load()
}

// EvictVoidTime returns the current eviction cutoff.
func (ns *Namespace) EvictVoidTime() uint32 {
	return ns.evictVoidTime.Load()
}

// RestoreEvictVoidTime seeds the eviction cutoff from persisted state
// during engine init, without writing it back out.
func (ns *Namespace) RestoreEvictVoidTime(voidTime uint32) {
	ns.evictVoidTime.Store(voidTime)
}

// --------------------------------------------------------------------------
// Engine Dispatch (namespace-scoped operations)
// --------------------------------------------------------------------------

// Destroy releases all engine-held resources for the namespace.
func (ns *Namespace) Destroy() error {
	return ns.engine.DestroyNamespace(ns)
}

// DestroyRecord releases device-resident storage for one record and counts
// the destruction. The caller owns the memory-accounting drop (exactly once,
// via RecordDescriptor.DropFromMemStats, before the index entry goes away).
func (ns *Namespace) DestroyRecord(r *Record) error {
	ns.destroyCount.Inc()
	return ns.engine.DestroyRecord(ns, r)
}

// WaitForDefrag blocks until the engine's defragmentation backlog clears.
func (ns *Namespace) WaitForDefrag() {
	ns.engine.WaitForDefrag(ns)
}

// Overloaded reports whether write admission should be rejected due to
// device backlog. Always false for engines without a device.
func (ns *Namespace) Overloaded() bool {
	return ns.engine.Overloaded(ns)
}

// HasSpace reports whether remaining device capacity permits new writes.
// Always true for engines without a device.
func (ns *Namespace) HasSpace() bool {
	return ns.engine.HasSpace(ns)
}

// DefragSweep triggers one on-demand defragmentation pass.
func (ns *Namespace) DefragSweep() {
	ns.engine.DefragSweep(ns)
}

// InfoSet writes one partition's persisted metadata to the engine.
func (ns *Namespace) InfoSet(pid uint32, info PartitionInfo, flush bool) {
	ns.SetPartitionInfoLocal(pid, info)
	ns.engine.InfoSet(ns, pid, info, flush)
}

// InfoGet reads one partition's persisted metadata from the engine.
func (ns *Namespace) InfoGet(pid uint32) (PartitionInfo, bool) {
	return ns.engine.InfoGet(ns, pid)
}

// InfoFlush flushes all outstanding partition metadata.
func (ns *Namespace) InfoFlush() error {
	return ns.engine.InfoFlush(ns)
}

// SaveEvictVoidTime persists the eviction cutoff so it survives restart.
func (ns *Namespace) SaveEvictVoidTime(voidTime uint32) {
	ns.evictVoidTime.Store(voidTime)
	ns.engine.SaveEvictVoidTime(ns, voidTime)
}

// Stats reports available-capacity percentage and used device bytes.
func (ns *Namespace) Stats() (availablePct int, usedBytes uint64) {
	return ns.engine.Stats(ns)
}

// TickerStats emits the engine's periodic statistics.
func (ns *Namespace) TickerStats() error {
	return ns.engine.TickerStats(ns)
}

// HistogramClearAll resets the engine's statistics histograms.
func (ns *Namespace) HistogramClearAll() error {
	return ns.engine.HistogramClearAll(ns)
}
