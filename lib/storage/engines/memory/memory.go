package memory

import (
	"github.com/lni/dragonboat/v4/logger"

	"github.com/ariesdevil/aerospike-server/lib/storage"
)

var Logger = logger.GetLogger("memory")

func init() {
	storage.RegisterEngine(storage.EngineMemory, NewMemoryEngine)
}

// memoryEngine is the in-memory storage engine. Almost everything is the
// embedded no-op default, because all the in-memory state is correct
// already - there is no device capacity, no defragmentation and no
// persisted partition metadata. Only the record data path, init, info-get
// and stats carry real implementations.
type memoryEngine struct {
	storage.NoopEngine
}

// NewMemoryEngine creates the engine value an in-memory namespace owns.
func NewMemoryEngine() storage.Engine {
	return &memoryEngine{}
}

// InitNamespace has nothing to load - it signals completion immediately.
func (e *memoryEngine) InitNamespace(ns *storage.Namespace, complete chan<- *storage.Namespace) error {
	Logger.Infof("{%s} beginning memory namespace init", ns.Name)

	complete <- ns

	return nil
}

// DestroyRecord drops the index entry's bin space. There is no device
// storage to release; the memory-accounting drop stays with the caller.
func (e *memoryEngine) DestroyRecord(_ *storage.Namespace, r *storage.Record) error {
	r.SetBinSpace(nil)
	return nil
}

// RecordWrite commits the descriptor's bins to the index entry's in-memory
// bin space. There is no device, but the logical write still happens here -
// after it, readers opening the record see the new bins.
func (e *memoryEngine) RecordWrite(rd *storage.RecordDescriptor) error {
	bins := make([]storage.Bin, len(rd.Bins))
	copy(bins, rd.Bins)

	rd.R.SetBinSpace(bins)
	rd.NumBins = uint16(len(bins))

	return nil
}

// RecordOpen surfaces the index-resident bin space so the load steps have
// something to resolve against.
func (e *memoryEngine) RecordOpen(rd *storage.RecordDescriptor) error {
	if !rd.R.HasBinSpace() {
		return storage.NewError(storage.RetCNotFound, "record has no in-memory bin space")
	}
	return nil
}

// RecordLoadNumBins resolves the bin count from the in-memory bin space.
func (e *memoryEngine) RecordLoadNumBins(rd *storage.RecordDescriptor) error {
	rd.NumBins = uint16(len(rd.R.BinSpace()))
	return nil
}

// RecordLoadBins materializes the in-memory bins into the descriptor.
func (e *memoryEngine) RecordLoadBins(rd *storage.RecordDescriptor) error {
	bins := rd.R.BinSpace()

	rd.Bins = make([]storage.Bin, len(bins))
	copy(rd.Bins, bins)
	rd.NumBins = uint16(len(bins))

	return nil
}

// InfoGet serves the in-process partition version/state table - memory
// namespaces have no device header, so the in-process copy is the record
// of truth.
func (e *memoryEngine) InfoGet(ns *storage.Namespace, pid uint32) (storage.PartitionInfo, bool) {
	return ns.PartitionInfoLocal(pid), true
}

// Stats reports full availability - memory namespaces have no device.
func (e *memoryEngine) Stats(_ *storage.Namespace) (int, uint64) {
	return 100, 0
}
