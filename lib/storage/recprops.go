package storage

import (
	"encoding/binary"
)

// --------------------------------------------------------------------------
// Rec-Props Codec
// --------------------------------------------------------------------------

// Rec-props is the small self-describing metadata block (set name, stored
// key) attached to a record, distinct from its bin data. Fields are packed
// back to back as a 1-byte field id, a 4-byte little-endian value length
// and the value bytes.
//
// The codec is deliberately two-phase: compute the exact total size first
// (RecordDescriptor.RecPropsSize), then populate a buffer of exactly that
// size (RecordDescriptor.StageRecProps, which allocates the buffer itself
// so the size/buffer relationship cannot be violated by the caller).

// RecPropsFieldID identifies one rec-props field kind.
type RecPropsFieldID uint8

const (
	RecPropsFieldSetName RecPropsFieldID = iota
	RecPropsFieldKey
)

const recPropsFieldOverhead = 5 // 1-byte id + 4-byte value length

// RecPropsSizeofField returns the packed size of a field, given its value
// size.
func RecPropsSizeofField(valueSize int) int {
	return recPropsFieldOverhead + valueSize
}

// RecProps stages a record's metadata fields into a caller-visible buffer.
// The size member acts as a write cursor during AddField.
type RecProps struct {
	data []byte
	size int
}

// Clear resets the staging buffer to absent.
func (p *RecProps) Clear() {
	p.data = nil
	p.size = 0
}

// Init binds the staging area to buf and rewinds the write cursor.
func (p *RecProps) Init(buf []byte) {
	p.data = buf
	p.size = 0
}

// AddField appends one field, trusting that the buffer was sized for it.
func (p *RecProps) AddField(id RecPropsFieldID, value []byte) {
	p.data[p.size] = byte(id)
	binary.LittleEndian.PutUint32(p.data[p.size+1:], uint32(len(value)))
	copy(p.data[p.size+recPropsFieldOverhead:], value)
	p.size += RecPropsSizeofField(len(value))
}

// Size returns the number of bytes written so far.
func (p *RecProps) Size() int {
	return p.size
}

// Data returns the populated portion of the staging buffer.
func (p *RecProps) Data() []byte {
	if p.data == nil {
		return nil
	}
	return p.data[:p.size]
}

// GetValue parses the staged fields for a specific id. Used by the device
// read path and by anything that round-trips a flat record.
func (p *RecProps) GetValue(id RecPropsFieldID) ([]byte, bool) {
	return RecPropsGetValue(p.Data(), id)
}

// RecPropsGetValue parses a packed rec-props block for a specific field id.
func RecPropsGetValue(data []byte, id RecPropsFieldID) ([]byte, bool) {
	for len(data) >= recPropsFieldOverhead {
		fieldID := RecPropsFieldID(data[0])
		valueSize := int(binary.LittleEndian.Uint32(data[1:]))

		if len(data) < recPropsFieldOverhead+valueSize {
			break // truncated block
		}

		if fieldID == id {
			return data[recPropsFieldOverhead : recPropsFieldOverhead+valueSize], true
		}

		data = data[recPropsFieldOverhead+valueSize:]
	}

	return nil, false
}
