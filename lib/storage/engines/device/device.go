package device

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/ariesdevil/aerospike-server/lib/storage"
	"github.com/ariesdevil/aerospike-server/lib/storage/util"
)

var Logger = logger.GetLogger("device")

func init() {
	storage.RegisterEngine(storage.EngineDevice, NewDeviceEngine)
}

// Defaults applied to zero-valued device configuration fields.
const (
	defaultWriteBlockSize     = 1024 * 1024
	defaultFileSizeBytes      = 1024 * 1024 * 1024
	defaultMaxWriteCacheBytes = 64 * 1024 * 1024
	defaultMinAvailPct        = 5
	defaultDefragLowWaterPct  = 50
	defaultTombRaiderPeriod   = 120 * time.Second
)

// writeBlock is one buffered write block (the unit the flusher writes to
// the device). Records are appended back to back; the remainder of the
// block is zero-padded on flush so a reused block never exposes stale
// data to the init scan.
type writeBlock struct {
	id  uint64
	buf []byte
}

// deviceEngine is the device-backed storage engine. One instance per
// namespace, bound by the registry at configuration time.
//
// Writes are buffered in write blocks and flushed by a background writer;
// reads are served from the open/queued blocks first, then the device.
// Every rewrite lands in a fresh block and releases the record's old
// location, so low-utilization blocks drain toward empty and get
// reclaimed by the defrag sweep.
type deviceEngine struct {
	storage.NoopEngine

	cfg  storage.DeviceConfig
	tomb time.Duration

	mu   sync.Mutex
	file *os.File

	// header state, persisted at offset 0
	evictVoidTime uint32
	parts         [storage.NumPartitions]storage.PartitionInfo

	// write path
	cur         *writeBlock
	pending     map[uint64]*writeBlock
	writeQueue  chan *writeBlock
	flusherWG   sync.WaitGroup
	nextBlockID uint64
	freeIDs     []uint64

	// per-block used bytes, feeding the defrag candidate heap
	blockUsed map[uint64]uint64
	defrag    *util.BlockHeap
	reclaimed atomic.Uint64

	usedBytes atomic.Int64
	shut      atomic.Bool
	tombStop  chan struct{}
	tombOnce  sync.Once

	sizeHist     *util.SizeHistogram
	writeLatency gometrics.Histogram
}

// NewDeviceEngine creates the engine value a device-backed namespace owns.
func NewDeviceEngine() storage.Engine {
	return &deviceEngine{
		pending:   make(map[uint64]*writeBlock),
		blockUsed: make(map[uint64]uint64),
		defrag:    util.NewBlockHeap(),
		tombStop:  make(chan struct{}),
		sizeHist:  util.NewSizeHistogram(),
		writeLatency: gometrics.NewHistogram(
			gometrics.NewExpDecaySample(1028, 0.015)),
	}
}

// --------------------------------------------------------------------------
// Namespace Lifecycle
// --------------------------------------------------------------------------

// InitNamespace opens (or creates) the backing file, validates the header,
// and scans the data region in the background to rebuild the per-block
// usage map. Completion is signaled once the scan finishes; the loading
// ticker reports progress meanwhile.
func (e *deviceEngine) InitNamespace(ns *storage.Namespace, complete chan<- *storage.Namespace) error {
	e.cfg = ns.Device
	e.applyDefaults()

	if e.cfg.Path == "" {
		return storage.NewError(storage.RetCBadConfig,
			"device namespace "+ns.Name+" has no device path configured")
	}

	file, err := os.OpenFile(e.cfg.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return storage.NewError(storage.RetCIO, "cannot open device file: "+err.Error())
	}
	e.file = file

	e.writeQueue = make(chan *writeBlock, e.cfg.MaxWriteCacheBytes/e.cfg.WriteBlockSize)

	fresh, err := e.loadHeader(ns)
	if err != nil {
		file.Close()
		return err
	}

	e.flusherWG.Add(1)
	go e.flusher()

	Logger.Infof("{%s} beginning device namespace init from %s", ns.Name, e.cfg.Path)

	go func() {
		if !fresh {
			e.scanDevice(ns)
		}
		complete <- ns
	}()

	return nil
}

func (e *deviceEngine) applyDefaults() {
	if e.cfg.WriteBlockSize == 0 {
		e.cfg.WriteBlockSize = defaultWriteBlockSize
	}
	if e.cfg.FileSizeBytes == 0 {
		e.cfg.FileSizeBytes = defaultFileSizeBytes
	}
	if e.cfg.MaxWriteCacheBytes == 0 {
		e.cfg.MaxWriteCacheBytes = defaultMaxWriteCacheBytes
	}
	if e.cfg.MinAvailPct == 0 {
		e.cfg.MinAvailPct = defaultMinAvailPct
	}
	if e.cfg.DefragLowWaterPct == 0 {
		e.cfg.DefragLowWaterPct = defaultDefragLowWaterPct
	}
	e.tomb = defaultTombRaiderPeriod
	if e.cfg.TombRaiderPeriodSec > 0 {
		e.tomb = time.Duration(e.cfg.TombRaiderPeriodSec) * time.Second
	}
}

// loadHeader reads and validates the device header, writing a fresh one
// for a new device. Reports whether the device is fresh (nothing to scan).
func (e *deviceEngine) loadHeader(ns *storage.Namespace) (bool, error) {
	info, err := e.file.Stat()
	if err != nil {
		return false, storage.NewError(storage.RetCIO, "cannot stat device file: "+err.Error())
	}

	if info.Size() < headerSize {
		e.mu.Lock()
		defer e.mu.Unlock()
		return true, e.writeHeaderLocked()
	}

	buf := make([]byte, headerSize)
	if _, err := e.file.ReadAt(buf, 0); err != nil {
		return false, storage.NewError(storage.RetCIO, "cannot read device header: "+err.Error())
	}

	// A pre-allocated, never-written device reads back as zeros and is
	// initialized in place. Non-zero garbage is a real corruption.
	if isZeroed(buf) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return true, e.writeHeaderLocked()
	}

	evictVoidTime, parts, err := decodeHeader(buf)
	if err != nil {
		return false, err
	}

	e.evictVoidTime = evictVoidTime
	e.parts = parts

	ns.RestoreEvictVoidTime(evictVoidTime)
	for pid := uint32(0); pid < storage.NumPartitions; pid++ {
		ns.SetPartitionInfoLocal(pid, parts[pid])
	}

	return false, nil
}

// scanDevice walks the data region block by block, rebuilding per-block
// used bytes and seeding the defrag candidate heap. Records are packed
// from each block's start; a zero length prefix ends the block's used
// region.
func (e *deviceEngine) scanDevice(ns *storage.Namespace) {
	info, err := e.file.Stat()
	if err != nil {
		Logger.Errorf("{%s} cannot stat device during init scan: %v", ns.Name, err)
		return
	}

	wbs := int64(e.cfg.WriteBlockSize)
	block := make([]byte, wbs)

	for off := int64(headerSize); off+wbs <= info.Size(); off += wbs {
		if _, err := e.file.ReadAt(block, off); err != nil && err != io.EOF {
			Logger.Errorf("{%s} device init scan read failed at %d: %v", ns.Name, off, err)
			return
		}

		id := uint64(off-headerSize) / uint64(wbs)
		used := uint64(0)

		at := 0
		for at+flatLenSize <= len(block) {
			length := flatRecordLen(block[at:])
			if length == 0 {
				break // zero prefix or padding - end of the block's used region
			}

			fr, ferr := decodeFlat(block[at:])
			if ferr != nil {
				Logger.Warningf("{%s} corrupt record at device offset %d, truncating block scan",
					ns.Name, off+int64(at))
				break
			}

			if !fr.tombstone {
				used += uint64(length)
			}
			ns.AddRecordsLoaded(1)
			at += length
		}

		e.mu.Lock()
		if used > 0 || at > 0 {
			e.blockUsed[id] = used
			e.usedBytes.Add(int64(used))
			if e.belowLowWaterLocked(used) {
				e.defrag.Add(id, used)
			}
			if id >= e.nextBlockID {
				e.nextBlockID = id + 1
			}
		}
		e.mu.Unlock()
	}
}

func isZeroed(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// flatRecordLen returns the full size of the flat record at the start of
// buf, 0 when buf starts with padding.
func flatRecordLen(buf []byte) int {
	if len(buf) < flatLenSize {
		return 0
	}
	length := int(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	if length == 0 || flatLenSize+length > len(buf) {
		return 0
	}
	return flatLenSize + length
}

// LoadingTicker reports init scan progress.
func (e *deviceEngine) LoadingTicker(ns *storage.Namespace) {
	Logger.Infof("{%s} loaded %d records, used %d bytes",
		ns.Name, ns.RecordsLoaded(), e.usedBytes.Load())
}

// StartTombRaider begins the periodic sweep that reclaims drained blocks
// and tombstoned storage.
func (e *deviceEngine) StartTombRaider(ns *storage.Namespace) {
	e.tombOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(e.tomb)
			defer ticker.Stop()

			for {
				select {
				case <-e.tombStop:
					return
				case <-ticker.C:
					e.DefragSweep(ns)
					Logger.Infof("{%s} tomb raider pass complete, %d blocks reclaimed total",
						ns.Name, e.reclaimed.Load())
				}
			}
		}()
	})
}

// DestroyNamespace releases the engine's file handle and stops background
// work.
func (e *deviceEngine) DestroyNamespace(ns *storage.Namespace) error {
	e.Shutdown(ns)

	if e.file != nil {
		if err := e.file.Close(); err != nil {
			return storage.NewError(storage.RetCIO, "cannot close device file: "+err.Error())
		}
	}
	return nil
}

// Shutdown flushes the open write block, drains the write queue, and
// persists the header. Errors are logged, never returned - at this point
// durability is this engine's last word.
func (e *deviceEngine) Shutdown(ns *storage.Namespace) {
	if !e.shut.CompareAndSwap(false, true) {
		return
	}

	close(e.tombStop)

	e.mu.Lock()
	last := e.cur
	if last != nil {
		e.pending[last.id] = last
		e.cur = nil
	}
	e.mu.Unlock()

	if last != nil {
		e.writeQueue <- last
	}
	close(e.writeQueue)
	e.flusherWG.Wait()

	e.mu.Lock()
	if err := e.writeHeaderLocked(); err != nil {
		Logger.Errorf("{%s} header flush failed during shutdown: %v", ns.Name, err)
	}
	e.mu.Unlock()

	if err := e.file.Sync(); err != nil {
		Logger.Errorf("{%s} device sync failed during shutdown: %v", ns.Name, err)
	}
}

// --------------------------------------------------------------------------
// Record Lifecycle
// --------------------------------------------------------------------------

// RecordOpen reads the record's flat form - from the open or queued write
// blocks when it has not reached the device yet, from the device
// otherwise - and parks the decoded form on the descriptor for the load
// steps.
func (e *deviceEngine) RecordOpen(rd *storage.RecordDescriptor) error {
	if rd.R.DeviceRBlock == 0 {
		return storage.NewError(storage.RetCNotFound, "record has no device location")
	}

	flat, err := e.readFlat(rd.R.DeviceRBlock)
	if err != nil {
		return err
	}

	fr, err := decodeFlat(flat)
	if err != nil {
		return err
	}

	if fr.tombstone {
		return storage.NewError(storage.RetCNotFound, "record is tombstoned")
	}

	rd.EngineData = fr
	return nil
}

// readFlat fetches the flat record bytes at an absolute device offset.
func (e *deviceEngine) readFlat(rblock uint64) ([]byte, error) {
	wbs := uint64(e.cfg.WriteBlockSize)
	blockID := (rblock - headerSize) / wbs
	offInBlock := (rblock - headerSize) % wbs

	e.mu.Lock()
	var src []byte
	if e.cur != nil && e.cur.id == blockID {
		src = e.cur.buf
	} else if b, ok := e.pending[blockID]; ok {
		src = b.buf
	}
	if src != nil {
		if offInBlock >= uint64(len(src)) {
			e.mu.Unlock()
			return nil, storage.NewError(storage.RetCIO, "record offset beyond buffered block")
		}
		length := flatRecordLen(src[offInBlock:])
		flat := make([]byte, length)
		copy(flat, src[offInBlock:])
		e.mu.Unlock()
		return flat, nil
	}
	e.mu.Unlock()

	var lenBuf [flatLenSize]byte
	if _, err := e.file.ReadAt(lenBuf[:], int64(rblock)); err != nil {
		return nil, storage.NewError(storage.RetCIO, "device read failed: "+err.Error())
	}

	body := uint32(lenBuf[0]) | uint32(lenBuf[1])<<8 | uint32(lenBuf[2])<<16 | uint32(lenBuf[3])<<24
	if body == 0 {
		return nil, storage.NewError(storage.RetCNotFound, "no record at device location")
	}

	flat := make([]byte, flatLenSize+int(body))
	if _, err := e.file.ReadAt(flat, int64(rblock)); err != nil {
		return nil, storage.NewError(storage.RetCIO, "device read failed: "+err.Error())
	}

	return flat, nil
}

// RecordClose drops the engine-held decoded record.
func (e *deviceEngine) RecordClose(rd *storage.RecordDescriptor) error {
	rd.EngineData = nil
	return nil
}

// RecordLoadNumBins resolves the bin count from the decoded flat record
// without materializing values.
func (e *deviceEngine) RecordLoadNumBins(rd *storage.RecordDescriptor) error {
	fr, ok := rd.EngineData.(*flatRecord)
	if !ok {
		return storage.NewError(storage.RetCInternalError, "bin count load before record open")
	}
	rd.NumBins = uint16(len(fr.bins))
	return nil
}

// RecordLoadBins materializes the decoded bins into the descriptor.
func (e *deviceEngine) RecordLoadBins(rd *storage.RecordDescriptor) error {
	fr, ok := rd.EngineData.(*flatRecord)
	if !ok {
		return storage.NewError(storage.RetCInternalError, "bin load before record open")
	}

	rd.Bins = make([]storage.Bin, len(fr.bins))
	copy(rd.Bins, fr.bins)
	rd.NumBins = uint16(len(fr.bins))
	return nil
}

// RecordReadKey resolves the stored key from the device-resident rec-props.
func (e *deviceEngine) RecordReadKey(rd *storage.RecordDescriptor) (bool, error) {
	fr, ok := rd.EngineData.(*flatRecord)
	if !ok {
		return false, nil
	}

	key, found := storage.RecPropsGetValue(fr.props, storage.RecPropsFieldKey)
	if !found {
		return false, nil
	}

	rd.Key = key
	return true, nil
}

// RecordSizeAndCheck checks the flattened record against the write block
// size - a record must fit one block.
func (e *deviceEngine) RecordSizeAndCheck(rd *storage.RecordDescriptor) bool {
	return flatSize(rd) <= e.cfg.WriteBlockSize
}

// RecordWrite appends the record's flat form to the open write block,
// releasing the record's previous device location. The whole flat record
// lands in one block under the engine lock, so readers see all of it or
// none of it.
func (e *deviceEngine) RecordWrite(rd *storage.RecordDescriptor) error {
	flat := encodeFlat(rd)
	if len(flat) > e.cfg.WriteBlockSize {
		return storage.NewError(storage.RetCRecordTooBig, "flat record exceeds write block size")
	}

	start := time.Now()

	e.mu.Lock()

	var full *writeBlock
	if e.cur == nil || len(e.cur.buf)+len(flat) > e.cfg.WriteBlockSize {
		var err error
		full, err = e.rotateLocked()
		if err != nil {
			e.mu.Unlock()
			// The rotated-out block still needs to reach the flusher.
			if full != nil {
				e.writeQueue <- full
			}
			return err
		}
	}

	oldRBlock := rd.R.DeviceRBlock

	rblock := headerSize + e.cur.id*uint64(e.cfg.WriteBlockSize) + uint64(len(e.cur.buf))
	e.cur.buf = append(e.cur.buf, flat...)
	e.blockUsed[e.cur.id] += uint64(len(flat))
	e.usedBytes.Add(int64(len(flat)))
	rd.R.DeviceRBlock = rblock

	if oldRBlock != 0 {
		e.releaseLocked(oldRBlock)
	}

	e.mu.Unlock()

	// Data-in-memory namespaces mirror the bins in the index entry; the
	// device copy stays authoritative for restarts.
	if rd.NS.DataInMemory {
		bins := make([]storage.Bin, len(rd.Bins))
		copy(bins, rd.Bins)
		rd.R.SetBinSpace(bins)
	}

	// The queue send happens outside the engine lock so a full queue
	// cannot deadlock against the flusher.
	if full != nil {
		e.writeQueue <- full
	}

	e.sizeHist.AddSample(len(flat))
	e.writeLatency.Update(time.Since(start).Nanoseconds())

	return nil
}

// DestroyRecord releases the record's device-resident storage and any
// in-memory mirror.
func (e *deviceEngine) DestroyRecord(ns *storage.Namespace, r *storage.Record) error {
	if ns.DataInMemory {
		r.SetBinSpace(nil)
	}

	if r.DeviceRBlock == 0 {
		return nil
	}

	e.mu.Lock()
	e.releaseLocked(r.DeviceRBlock)
	e.mu.Unlock()

	r.DeviceRBlock = 0
	return nil
}

// rotateLocked queues the open write block (returned to the caller for
// the actual channel send) and opens a fresh one.
func (e *deviceEngine) rotateLocked() (*writeBlock, error) {
	full := e.cur
	if full != nil {
		e.pending[full.id] = full

		// Releases against the open block are not defrag-eligible, so a
		// block that drained while open must be re-checked as it seals -
		// no later release will come along to nominate it.
		if used := e.blockUsed[full.id]; e.belowLowWaterLocked(used) {
			e.defrag.Add(full.id, used)
		}
	}

	id, err := e.allocBlockLocked()
	if err != nil {
		e.cur = nil
		return full, err
	}

	e.cur = &writeBlock{
		id:  id,
		buf: make([]byte, 0, e.cfg.WriteBlockSize),
	}
	return full, nil
}

// allocBlockLocked hands out a reclaimed block id when one is free,
// otherwise grows into the remaining device capacity.
func (e *deviceEngine) allocBlockLocked() (uint64, error) {
	if n := len(e.freeIDs); n > 0 {
		id := e.freeIDs[n-1]
		e.freeIDs = e.freeIDs[:n-1]
		return id, nil
	}

	id := e.nextBlockID
	end := int64(headerSize) + int64(id+1)*int64(e.cfg.WriteBlockSize)
	if end > e.cfg.FileSizeBytes {
		return 0, storage.NewError(storage.RetCOutOfSpace, "device file is full")
	}

	e.nextBlockID++
	return id, nil
}

// releaseLocked gives a record's bytes back to its block, scheduling the
// block for defrag once it falls below the low-water mark.
func (e *deviceEngine) releaseLocked(rblock uint64) {
	wbs := uint64(e.cfg.WriteBlockSize)
	blockID := (rblock - headerSize) / wbs
	offInBlock := (rblock - headerSize) % wbs

	size := uint64(e.recordSizeAtLocked(blockID, offInBlock))
	if size == 0 {
		return
	}

	used := e.blockUsed[blockID]
	if size > used {
		size = used
	}
	used -= size
	e.blockUsed[blockID] = used
	e.usedBytes.Add(-int64(size))

	if e.belowLowWaterLocked(used) && !(e.cur != nil && e.cur.id == blockID) {
		e.defrag.Add(blockID, used)
	}
}

// recordSizeAtLocked sizes the flat record at a block offset, consulting
// buffered blocks before the device.
func (e *deviceEngine) recordSizeAtLocked(blockID, offInBlock uint64) int {
	if e.cur != nil && e.cur.id == blockID && offInBlock < uint64(len(e.cur.buf)) {
		return flatRecordLen(e.cur.buf[offInBlock:])
	}
	if b, ok := e.pending[blockID]; ok && offInBlock < uint64(len(b.buf)) {
		return flatRecordLen(b.buf[offInBlock:])
	}

	var lenBuf [flatLenSize]byte
	off := int64(headerSize) + int64(blockID)*int64(e.cfg.WriteBlockSize) + int64(offInBlock)
	if _, err := e.file.ReadAt(lenBuf[:], off); err != nil {
		return 0
	}
	return flatLenSize + int(uint32(lenBuf[0])|uint32(lenBuf[1])<<8|uint32(lenBuf[2])<<16|uint32(lenBuf[3])<<24)
}

func (e *deviceEngine) belowLowWaterLocked(used uint64) bool {
	return used*100 < uint64(e.cfg.WriteBlockSize)*uint64(e.cfg.DefragLowWaterPct)
}

// flusher writes queued blocks to the device, zero-padded to the full
// block size so reclaimed blocks never leak stale record tails.
func (e *deviceEngine) flusher() {
	defer e.flusherWG.Done()

	padded := make([]byte, e.cfg.WriteBlockSize)

	for b := range e.writeQueue {
		copy(padded, b.buf)
		for i := len(b.buf); i < len(padded); i++ {
			padded[i] = 0
		}

		off := int64(headerSize) + int64(b.id)*int64(e.cfg.WriteBlockSize)
		if _, err := e.file.WriteAt(padded, off); err != nil {
			Logger.Errorf("device write failed for block %d: %v", b.id, err)
		}

		e.mu.Lock()
		// The block id may have been given out again, with the new
		// incarnation sitting in the map. Only drop the entry that still
		// refers to the block just flushed.
		if e.pending[b.id] == b {
			delete(e.pending, b.id)
		}
		e.mu.Unlock()
	}
}

// --------------------------------------------------------------------------
// Capacity Monitoring
// --------------------------------------------------------------------------

// Overloaded reports a full write-back queue.
func (e *deviceEngine) Overloaded(_ *storage.Namespace) bool {
	return e.writeQueue != nil && len(e.writeQueue) >= cap(e.writeQueue)
}

// HasSpace reports whether the device's available percentage is still at
// or above the configured minimum.
func (e *deviceEngine) HasSpace(_ *storage.Namespace) bool {
	return e.availPct() >= e.cfg.MinAvailPct
}

func (e *deviceEngine) availPct() int {
	capacity := e.cfg.FileSizeBytes - headerSize
	if capacity <= 0 {
		return 0
	}

	used := e.usedBytes.Load()
	if used >= capacity {
		return 0
	}
	return int(100 - used*100/capacity)
}

// DefragSweep runs one reclamation pass: candidate blocks that have
// drained to zero used bytes go back on the free list. A block whose
// write has not reached the device yet stays a candidate until the
// flusher is done with it - handing its id out while the old bytes are
// still queued would let a reader of the reused block fall through to
// the device and see the previous occupant's records. This also keeps
// the free list disjoint from the pending map, so block allocation
// never needs its own check.
func (e *deviceEngine) DefragSweep(_ *storage.Namespace) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var unflushed []uint64

	for {
		_, used, ok := e.defrag.Peek()
		if !ok || used != 0 {
			break
		}

		block, _, _ := e.defrag.PopEmptiest()

		if _, queued := e.pending[block]; queued {
			unflushed = append(unflushed, block)
			continue
		}

		delete(e.blockUsed, block)
		e.freeIDs = append(e.freeIDs, block)
		e.reclaimed.Add(1)
	}

	for _, block := range unflushed {
		e.defrag.Add(block, 0)
	}
}

// WaitForDefrag blocks until no drained block awaits reclamation. Runs to
// completion - a stuck backlog stalls the caller by design.
func (e *deviceEngine) WaitForDefrag(ns *storage.Namespace) {
	for {
		e.DefragSweep(ns)

		e.mu.Lock()
		_, used, ok := e.defrag.Peek()
		e.mu.Unlock()

		if !ok || used != 0 {
			return
		}

		time.Sleep(100 * time.Millisecond)
	}
}

// --------------------------------------------------------------------------
// Persisted Metadata
// --------------------------------------------------------------------------

func (e *deviceEngine) InfoSet(_ *storage.Namespace, pid uint32, info storage.PartitionInfo, flush bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.parts[pid] = info

	if flush {
		if err := e.writeHeaderLocked(); err != nil {
			Logger.Errorf("partition %d header flush failed: %v", pid, err)
		}
	}
}

func (e *deviceEngine) InfoGet(_ *storage.Namespace, pid uint32) (storage.PartitionInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parts[pid], true
}

func (e *deviceEngine) InfoFlush(_ *storage.Namespace) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeHeaderLocked()
}

func (e *deviceEngine) SaveEvictVoidTime(_ *storage.Namespace, voidTime uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evictVoidTime = voidTime

	if err := e.writeHeaderLocked(); err != nil {
		Logger.Errorf("evict void-time flush failed: %v", err)
	}
}

// writeHeaderLocked persists the header region and syncs it down.
func (e *deviceEngine) writeHeaderLocked() error {
	buf := encodeHeader(e.evictVoidTime, &e.parts)

	if _, err := e.file.WriteAt(buf, 0); err != nil {
		return storage.NewError(storage.RetCIO, "device header write failed: "+err.Error())
	}
	if err := e.file.Sync(); err != nil {
		return storage.NewError(storage.RetCIO, "device header sync failed: "+err.Error())
	}
	return nil
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats reports the available-capacity percentage and used device bytes.
func (e *deviceEngine) Stats(_ *storage.Namespace) (int, uint64) {
	return e.availPct(), uint64(e.usedBytes.Load())
}

// TickerStats logs the engine's periodic statistics: record size
// distribution, write latency and block utilization.
func (e *deviceEngine) TickerStats(ns *storage.Namespace) error {
	e.mu.Lock()
	utilization := make([]float64, 0, len(e.blockUsed))
	for _, used := range e.blockUsed {
		utilization = append(utilization, float64(used)/float64(e.cfg.WriteBlockSize))
	}
	queueDepth := len(e.writeQueue)
	e.mu.Unlock()

	latency := e.writeLatency.Snapshot()
	blockStats := util.NewStats(utilization)

	Logger.Infof("{%s} device: used %d bytes, avail %d%%, write-q %d, reclaimed %d",
		ns.Name, e.usedBytes.Load(), e.availPct(), queueDepth, e.reclaimed.Load())
	Logger.Infof("{%s} records: avg %d bytes, median %d, p95 %d",
		ns.Name, e.sizeHist.AverageSize(), e.sizeHist.MedianEstimate(),
		e.sizeHist.PercentileEstimate(95))
	Logger.Infof("{%s} write latency: mean %.0f ns, p95 %.0f ns; block utilization: mean %.2f, min %.2f",
		ns.Name, latency.Mean(), latency.Percentile(0.95), blockStats.Mean, blockStats.Min)

	return nil
}

// HistogramClearAll resets the engine's statistics histograms.
func (e *deviceEngine) HistogramClearAll(_ *storage.Namespace) error {
	e.sizeHist.Reset()
	e.writeLatency.Clear()
	return nil
}
