package storage

// --------------------------------------------------------------------------
// Memory Accounting
// --------------------------------------------------------------------------

// Fixed bookkeeping overheads charged against a namespace's memory counters,
// beyond the raw particle bytes. These stand in for the index-side holder
// structures (key holder, separate bin-space allocation, per-bin slot).
const (
	recSpaceOverhead = 16
	binSpaceOverhead = 16
	binOverhead      = 24
)

// MemoryBytes computes the record's current in-memory footprint -
// everything except index bytes: the index-resident particle sizes, plus
// (multi-bin namespaces only) the stored-key holder and the bin-space
// allocation. Zero when the namespace does not mirror data in memory.
//
// The footprint is measured from the record, not from bins staged on the
// descriptor: captured before a write it reflects the old contents,
// captured after it reflects the new ones, which is what makes the delta
// in AdjustMemStats signed and exact.
func (rd *RecordDescriptor) MemoryBytes() uint64 {
	if !rd.NS.DataInMemory {
		return 0
	}

	var n uint64

	bins := rd.R.BinSpace()
	for i := range bins {
		n += bins[i].ParticleSize()
	}

	if !rd.NS.SingleBin {
		if rd.R.KeyStored {
			n += recSpaceOverhead + uint64(len(rd.R.Key))
		}

		if rd.R.HasBinSpace() {
			n += binSpaceOverhead + binOverhead*uint64(len(bins))
		}
	}

	return n
}

// AdjustMemStats applies the signed difference between the footprint at
// startBytes (captured before the mutation) and the current footprint to
// the namespace total and to the record's set counter. Call it around any
// mutation that may change bin contents, after the engine confirmed the
// write - accounting is never adjusted on failed writes.
//
// The footprint computation is not atomic with the counter update; holding
// the record's lock across both is the caller's responsibility.
func (rd *RecordDescriptor) AdjustMemStats(startBytes uint64) {
	if !rd.NS.DataInMemory {
		return
	}

	endBytes := rd.MemoryBytes()
	deltaBytes := int64(endBytes) - int64(startBytes)

	if deltaBytes != 0 {
		rd.NS.bytesMemory.Add(deltaBytes)
		rd.NS.AdjustSetMemory(rd.R.SetID, deltaBytes)
	}
}

// DropFromMemStats subtracts the record's full current footprint from the
// namespace and set counters. Must be called exactly once per record
// destruction - twice double-counts the subtraction, never leaks the bytes.
func (rd *RecordDescriptor) DropFromMemStats() {
	if !rd.NS.DataInMemory {
		return
	}

	dropBytes := rd.MemoryBytes()

	rd.NS.bytesMemory.Add(-int64(dropBytes))
	rd.NS.AdjustSetMemory(rd.R.SetID, -int64(dropBytes))
}
