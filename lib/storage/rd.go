package storage

// --------------------------------------------------------------------------
// Record Descriptor
// --------------------------------------------------------------------------

// rdState tracks the descriptor's position in its single-operation
// lifecycle. Transitions:
//
//	uninitialized -> creating | opening -> closed
//
// Bin loading, key resolution and rec-props staging happen between open
// and close; any descriptor use after Close is a contract violation and
// returns RetCDescriptorClosed.
type rdState uint8

const (
	rdUninitialized rdState = iota
	rdCreating
	rdOpening
	rdClosed
)

// RecordDescriptor is a transient, single-operation-scoped handle binding
// an index entry to its bin data and record metadata. It is exclusively
// owned by the goroutine that created it, must live entirely within the
// record's locked scope, and must never outlive it.
type RecordDescriptor struct {
	R  *Record
	NS *Namespace

	Props RecProps

	// Bins/NumBins are valid only after a successful load step (or after
	// the caller populates them for a write). NumBins may be resolved
	// without Bins via LoadNumBins.
	Bins    []Bin
	NumBins uint16

	// RecordOnDevice is false for create (nothing to read yet), true for
	// open. IgnoreRecordOnDevice suppresses device reads, e.g. when the
	// caller intends to replace the record wholesale.
	RecordOnDevice       bool
	IgnoreRecordOnDevice bool

	// Key is valid only after a successful ResolveKey.
	Key []byte

	DurableDelete bool

	// EngineData carries the engine's per-descriptor read/write handle
	// (device block, open handle, ...) between open and close. Opaque to
	// the core.
	EngineData any

	state rdState
}

// reset clears all per-operation fields. Mirrors what both create and open
// share; the caller sets RecordOnDevice afterwards.
func (rd *RecordDescriptor) reset(ns *Namespace, r *Record) {
	rd.R = r
	rd.NS = ns
	rd.Props.Clear()
	rd.Bins = nil
	rd.NumBins = 0
	rd.RecordOnDevice = false
	rd.IgnoreRecordOnDevice = false
	rd.Key = nil
	rd.DurableDelete = false
	rd.EngineData = nil
}

// usable returns an error when the descriptor may no longer be operated on.
func (rd *RecordDescriptor) usable() error {
	switch rd.state {
	case rdCreating, rdOpening:
		return nil
	case rdClosed:
		return NewError(RetCDescriptorClosed, "record descriptor used after close")
	default:
		return NewError(RetCInternalError, "record descriptor not initialized")
	}
}

// --------------------------------------------------------------------------
// Usage-Cycle Start
// --------------------------------------------------------------------------

// RecordCreate starts a descriptor usage cycle for a fresh write. There is
// nothing on the device to read, so RecordOnDevice is false.
func RecordCreate(ns *Namespace, r *Record) (*RecordDescriptor, error) {
	rd := &RecordDescriptor{}
	rd.reset(ns, r)
	rd.state = rdCreating

	if err := ns.engine.RecordCreate(rd); err != nil {
		return nil, err
	}

	return rd, nil
}

// RecordOpen starts a descriptor usage cycle for a read of an existing
// record. RecordOnDevice is true - there is persisted data to read.
func RecordOpen(ns *Namespace, r *Record) (*RecordDescriptor, error) {
	rd := &RecordDescriptor{}
	rd.reset(ns, r)
	rd.RecordOnDevice = true
	rd.state = rdOpening

	if err := ns.engine.RecordOpen(rd); err != nil {
		return nil, err
	}

	ns.readCount.Inc()

	return rd, nil
}

// --------------------------------------------------------------------------
// Within-Cycle Operations
// --------------------------------------------------------------------------

// LoadNumBins resolves NumBins from persisted metadata without
// materializing bin values. Valid only after RecordOpen.
func (rd *RecordDescriptor) LoadNumBins() error {
	if err := rd.usable(); err != nil {
		return err
	}
	if rd.state != rdOpening {
		return NewError(RetCInternalError, "bin count load on a descriptor not opened for read")
	}
	return rd.NS.engine.RecordLoadNumBins(rd)
}

// LoadBins materializes bin values into the descriptor. Valid only after
// RecordOpen.
func (rd *RecordDescriptor) LoadBins() error {
	if err := rd.usable(); err != nil {
		return err
	}
	if rd.state != rdOpening {
		return NewError(RetCInternalError, "bin load on a descriptor not opened for read")
	}
	return rd.NS.engine.RecordLoadBins(rd)
}

// SizeAndCheck computes the flattened record size and reports whether it
// fits the namespace's configured maximum. The size covers bins plus the
// currently staged rec-props, so callers must run StageRecProps first or
// the check undercounts what Write will flatten. Engines without a device
// have no limit and always permit.
func (rd *RecordDescriptor) SizeAndCheck() bool {
	if rd.usable() != nil {
		return false
	}
	return rd.NS.engine.RecordSizeAndCheck(rd)
}

// Write persists bins plus rec-props through the engine. Valid once bins
// are populated. The engine guarantees the whole record is made
// durable/visible, or none of it.
func (rd *RecordDescriptor) Write() error {
	if err := rd.usable(); err != nil {
		return err
	}
	if rd.Bins == nil && rd.NumBins == 0 {
		return NewError(RetCInternalError, "record write with no bins populated")
	}

	if err := rd.NS.engine.RecordWrite(rd); err != nil {
		return err
	}

	rd.NS.writeCount.Inc()
	return nil
}

// ResolveKey populates Key from the stored copy. Reads the in-memory index
// copy when the namespace mirrors data in memory; otherwise delegates to
// the engine's key-read path, but only when the record is on the device
// and device reads are not suppressed. Returns false when the index marks
// no key stored.
func (rd *RecordDescriptor) ResolveKey() (bool, error) {
	if err := rd.usable(); err != nil {
		return false, err
	}

	if !rd.R.KeyStored {
		return false, nil
	}

	if rd.NS.DataInMemory {
		rd.Key = rd.R.Key
		return true, nil
	}

	if rd.RecordOnDevice && !rd.IgnoreRecordOnDevice {
		return rd.NS.engine.RecordReadKey(rd)
	}

	return false, nil
}

// RecPropsSize computes the exact staged size of the record's metadata:
// the set-name field when the record belongs to a non-default set, plus
// the key field when a key was resolved. Callers must run ResolveKey first
// if they expect the key to be included.
func (rd *RecordDescriptor) RecPropsSize() int {
	size := 0

	if setName := rd.NS.SetName(rd.R.SetID); setName != "" {
		size += RecPropsSizeofField(len(setName))
	}

	if rd.Key != nil {
		size += RecPropsSizeofField(len(rd.Key))
	}

	return size
}

// StageRecProps populates the descriptor's rec-props from index info,
// allocating the exactly-sized buffer itself (size step and populate step
// cannot disagree). Returns the backing buffer, nil when there is nothing
// to stage.
func (rd *RecordDescriptor) StageRecProps() []byte {
	size := rd.RecPropsSize()
	if size == 0 {
		rd.Props.Clear()
		return nil
	}

	buf := make([]byte, size)
	rd.Props.Init(buf)

	if setName := rd.NS.SetName(rd.R.SetID); setName != "" {
		rd.Props.AddField(RecPropsFieldSetName, []byte(setName))
	}

	if rd.Key != nil {
		rd.Props.AddField(RecPropsFieldKey, rd.Key)
	}

	return buf
}

// --------------------------------------------------------------------------
// Usage-Cycle End
// --------------------------------------------------------------------------

// Close ends the descriptor usage cycle, releasing any engine-held handles.
// Terminal - safe to call exactly once; the descriptor must not be reused
// afterwards.
func (rd *RecordDescriptor) Close() error {
	if err := rd.usable(); err != nil {
		return err
	}

	err := rd.NS.engine.RecordClose(rd)

	rd.state = rdClosed
	rd.EngineData = nil

	return err
}
