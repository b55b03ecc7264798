package storage

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// EngineKind identifies the storage backend a namespace is configured with.
// The set of kinds is closed - an unknown kind is a fatal configuration error.
type EngineKind string

const (
	EngineMemory EngineKind = "memory"
	EngineDevice EngineKind = "device"
)

func (k EngineKind) String() string {
	return string(k)
}

// Valid reports whether the kind is a member of the closed engine-kind set.
func (k EngineKind) Valid() bool {
	return k == EngineMemory || k == EngineDevice
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Engine is the contract every storage backend must honor. Each namespace
// owns exactly one Engine value, bound once at configuration time by
// NewNamespace - there is no per-call kind dispatch after that.
//
// Most operations are meaningful only for device-backed engines. Instead of
// callers checking for a missing implementation before every call, engines
// embed NoopEngine, which supplies the documented default for every optional
// operation (success no-op, Overloaded=false, HasSpace=true, ...). The
// mandatory operations - InitNamespace, RecordWrite, InfoGet and Stats -
// have real implementations for both kinds; NoopEngine's renditions of those
// fail loudly so a misconfigured engine is caught at startup, not skipped.
type Engine interface {

	// --------------------------------------------------------------------------
	// Namespace Lifecycle
	// --------------------------------------------------------------------------

	// InitNamespace loads or prepares the engine's persistent state for ns.
	// Initialization may continue in the background; the engine must send ns
	// on complete exactly once when it is ready to serve. Engines must
	// eventually signal - the initializer polls forever, reporting progress,
	// and has no timeout-and-fail path.
	InitNamespace(ns *Namespace, complete chan<- *Namespace) error

	// StartTombRaider begins the long-running sweep that physically reclaims
	// storage for tombstoned records past their retention period.
	StartTombRaider(ns *Namespace)

	// DestroyNamespace releases all engine-held resources for ns.
	DestroyNamespace(ns *Namespace) error

	// Shutdown flushes everything outstanding to durable storage. Called only
	// by the shutdown sequencer, after the record-lock drain. Not allowed to
	// fail - engines log flush errors and carry on.
	Shutdown(ns *Namespace)

	// LoadingTicker is the progress-reporting hook invoked by the namespace
	// initializer on each poll interval while ns has not yet signaled.
	LoadingTicker(ns *Namespace)

	// --------------------------------------------------------------------------
	// Record Lifecycle
	// --------------------------------------------------------------------------

	// DestroyRecord releases device-resident storage for one record.
	DestroyRecord(ns *Namespace, r *Record) error

	// RecordCreate initializes a descriptor for a fresh write.
	RecordCreate(rd *RecordDescriptor) error

	// RecordOpen initializes a descriptor for a read of an existing record.
	RecordOpen(rd *RecordDescriptor) error

	// RecordClose releases any engine-held handles bound to the descriptor.
	RecordClose(rd *RecordDescriptor) error

	// RecordLoadNumBins resolves rd.NumBins from persisted metadata without
	// materializing bin values.
	RecordLoadNumBins(rd *RecordDescriptor) error

	// RecordLoadBins materializes bin values into the descriptor.
	RecordLoadBins(rd *RecordDescriptor) error

	// RecordSizeAndCheck computes the flattened record size - bins plus
	// staged rec-props - and reports whether it fits the namespace's
	// configured maximum.
	RecordSizeAndCheck(rd *RecordDescriptor) bool

	// RecordWrite persists bins plus rec-props, atomically from the engine's
	// point of view - the whole record becomes durable/visible, or none of it.
	RecordWrite(rd *RecordDescriptor) error

	// RecordReadKey resolves the stored key from the engine's persisted copy
	// of the record. Only reached when the namespace does not mirror data in
	// memory.
	RecordReadKey(rd *RecordDescriptor) (bool, error)

	// --------------------------------------------------------------------------
	// Capacity Monitoring
	// --------------------------------------------------------------------------

	// WaitForDefrag blocks until background defragmentation has no pending
	// backlog. Runs to completion - there is no cancellation path.
	WaitForDefrag(ns *Namespace)

	// Overloaded reports whether write admission should be rejected because
	// the device write queue is too backed up.
	Overloaded(ns *Namespace) bool

	// HasSpace reports whether remaining device capacity permits new writes.
	HasSpace(ns *Namespace) bool

	// DefragSweep triggers one on-demand defragmentation pass.
	DefragSweep(ns *Namespace)

	// --------------------------------------------------------------------------
	// Persisted Metadata
	// --------------------------------------------------------------------------

	// InfoSet writes one partition's version/state record to the engine,
	// optionally flushing it to the device immediately.
	InfoSet(ns *Namespace, pid uint32, info PartitionInfo, flush bool)

	// InfoGet reads one partition's persisted version/state record. The
	// boolean reports whether the engine holds a record for that partition.
	InfoGet(ns *Namespace, pid uint32) (PartitionInfo, bool)

	// InfoFlush flushes all outstanding partition metadata to the device.
	InfoFlush(ns *Namespace) error

	// SaveEvictVoidTime persists the current eviction cutoff so that it
	// survives a restart.
	SaveEvictVoidTime(ns *Namespace, voidTime uint32)

	// --------------------------------------------------------------------------
	// Statistics
	// --------------------------------------------------------------------------

	// Stats reports the worst-device available-capacity percentage and the
	// used bytes on the device.
	Stats(ns *Namespace) (availablePct int, usedBytes uint64)

	// TickerStats emits the engine's periodic human-readable statistics.
	TickerStats(ns *Namespace) error

	// HistogramClearAll resets the engine's statistics histograms.
	HistogramClearAll(ns *Namespace) error
}

// --------------------------------------------------------------------------
// Noop Defaults
// --------------------------------------------------------------------------

// NoopEngine provides the documented default for every optional engine
// operation. Concrete engines embed it and override what they implement,
// so callers never check for an absent operation.
//
// The mandatory operations (InitNamespace, RecordWrite, InfoGet, Stats) are
// deliberately NOT no-ops here: a kind that fails to override them is a
// build/config mismatch, surfaced as a hard error at namespace init.
type NoopEngine struct{}

func (NoopEngine) InitNamespace(ns *Namespace, _ chan<- *Namespace) error {
	return NewError(RetCInternalError,
		fmt.Sprintf("engine for namespace %s provides no init implementation", ns.Name))
}

func (NoopEngine) StartTombRaider(*Namespace)                  {}
func (NoopEngine) DestroyNamespace(*Namespace) error           { return nil }
func (NoopEngine) Shutdown(*Namespace)                         {}
func (NoopEngine) LoadingTicker(*Namespace)                    {}
func (NoopEngine) DestroyRecord(*Namespace, *Record) error     { return nil }
func (NoopEngine) RecordCreate(*RecordDescriptor) error        { return nil }
func (NoopEngine) RecordOpen(*RecordDescriptor) error          { return nil }
func (NoopEngine) RecordClose(*RecordDescriptor) error         { return nil }
func (NoopEngine) RecordLoadNumBins(*RecordDescriptor) error   { return nil }
func (NoopEngine) RecordLoadBins(*RecordDescriptor) error      { return nil }
func (NoopEngine) RecordSizeAndCheck(*RecordDescriptor) bool   { return true } // no device, no limit
func (NoopEngine) RecordReadKey(*RecordDescriptor) (bool, error) {
	return false, nil
}
func (NoopEngine) WaitForDefrag(*Namespace)    {}
func (NoopEngine) Overloaded(*Namespace) bool  { return false }
func (NoopEngine) HasSpace(*Namespace) bool    { return true }
func (NoopEngine) DefragSweep(*Namespace)      {}

func (NoopEngine) InfoSet(*Namespace, uint32, PartitionInfo, bool) {}
func (NoopEngine) InfoFlush(*Namespace) error                      { return nil }
func (NoopEngine) SaveEvictVoidTime(*Namespace, uint32)            {}

func (NoopEngine) InfoGet(ns *Namespace, _ uint32) (PartitionInfo, bool) {
	return PartitionInfo{}, false
}

func (NoopEngine) RecordWrite(rd *RecordDescriptor) error {
	return NewError(RetCInternalError,
		fmt.Sprintf("engine for namespace %s provides no write implementation", rd.NS.Name))
}

func (NoopEngine) Stats(*Namespace) (int, uint64)         { return 0, 0 }
func (NoopEngine) TickerStats(*Namespace) error           { return nil }
func (NoopEngine) HistogramClearAll(*Namespace) error     { return nil }

// --------------------------------------------------------------------------
// Engine Registry
// --------------------------------------------------------------------------

// EngineFactory creates the engine value a namespace of the given kind owns.
type EngineFactory func() Engine

var engineFactories = map[EngineKind]EngineFactory{}

// RegisterEngine maps an engine kind to its factory. Called from the engine
// packages' init functions; the registry is immutable after startup and is
// read without synchronization.
func RegisterEngine(kind EngineKind, factory EngineFactory) {
	if _, ok := engineFactories[kind]; ok {
		panic(fmt.Sprintf("storage engine %s registered twice", kind))
	}
	engineFactories[kind] = factory
}

// newEngine resolves the engine for a kind. An unknown kind - including a
// valid kind whose engine package was not linked in - is a configuration
// error the caller must treat as fatal.
func newEngine(kind EngineKind) (Engine, error) {
	factory, ok := engineFactories[kind]
	if !ok {
		return nil, NewError(RetCBadConfig,
			fmt.Sprintf("unknown storage engine kind %q", kind))
	}
	return factory(), nil
}
