package device

import (
	"encoding/binary"
	"fmt"

	"github.com/ariesdevil/aerospike-server/lib/storage"
)

// --------------------------------------------------------------------------
// Flat Record Format
// --------------------------------------------------------------------------

// A flat record is the device-resident form of one record:
//
//	uint32  length of everything after this field
//	[20]    digest
//	uint32  void-time
//	uint8   flags (bit 0: tombstone)
//	uint32  rec-props length, then the packed rec-props block
//	uint16  bin count
//	per bin: uint8 name length | name | uint32 particle length | particle
//
// All integers little-endian. The length prefix lets the init scan and
// the destroy path size a record without decoding it.

const (
	flatLenSize    = 4
	flatFixedAfter = storage.DigestSize + 4 + 1 + 4 + 2 // digest, void-time, flags, props len, bin count
	flatBinFixed   = 1 + 4                              // name length, particle length

	flatFlagTombstone = uint8(1 << 0)
)

// flatRecord is a decoded device-resident record.
type flatRecord struct {
	digest    storage.Digest
	voidTime  uint32
	tombstone bool
	props     []byte
	bins      []storage.Bin
}

// flatSize returns the full on-device size of the descriptor's record,
// length prefix included. The rec-props must already be staged.
func flatSize(rd *storage.RecordDescriptor) int {
	size := flatLenSize + flatFixedAfter + len(rd.Props.Data())

	for i := range rd.Bins {
		size += flatBinFixed + len(rd.Bins[i].Name) + len(rd.Bins[i].Particle)
	}

	return size
}

// encodeFlat flattens the descriptor into a freshly allocated buffer.
func encodeFlat(rd *storage.RecordDescriptor) []byte {
	props := rd.Props.Data()
	buf := make([]byte, flatSize(rd))

	binary.LittleEndian.PutUint32(buf, uint32(len(buf)-flatLenSize))
	at := flatLenSize

	copy(buf[at:], rd.R.Digest[:])
	at += storage.DigestSize

	binary.LittleEndian.PutUint32(buf[at:], rd.R.VoidTime)
	at += 4

	var flags uint8
	if rd.DurableDelete {
		flags |= flatFlagTombstone
	}
	buf[at] = flags
	at++

	binary.LittleEndian.PutUint32(buf[at:], uint32(len(props)))
	at += 4
	copy(buf[at:], props)
	at += len(props)

	binary.LittleEndian.PutUint16(buf[at:], uint16(len(rd.Bins)))
	at += 2

	for i := range rd.Bins {
		bin := &rd.Bins[i]

		buf[at] = uint8(len(bin.Name))
		at++
		copy(buf[at:], bin.Name)
		at += len(bin.Name)

		binary.LittleEndian.PutUint32(buf[at:], uint32(len(bin.Particle)))
		at += 4
		copy(buf[at:], bin.Particle)
		at += len(bin.Particle)
	}

	return buf
}

// decodeFlat parses one flat record. buf starts at the length prefix and
// must contain the full record.
func decodeFlat(buf []byte) (*flatRecord, error) {
	if len(buf) < flatLenSize+flatFixedAfter {
		return nil, storage.NewError(storage.RetCIO, "flat record truncated")
	}

	length := int(binary.LittleEndian.Uint32(buf))
	if length < flatFixedAfter {
		return nil, storage.NewError(storage.RetCIO, "flat record length prefix below fixed fields")
	}
	if len(buf) < flatLenSize+length {
		return nil, storage.NewError(storage.RetCIO, "flat record shorter than its length prefix")
	}
	buf = buf[flatLenSize : flatLenSize+length]

	fr := &flatRecord{}
	at := 0

	copy(fr.digest[:], buf[at:])
	at += storage.DigestSize

	fr.voidTime = binary.LittleEndian.Uint32(buf[at:])
	at += 4

	fr.tombstone = buf[at]&flatFlagTombstone != 0
	at++

	propsLen := int(binary.LittleEndian.Uint32(buf[at:]))
	at += 4
	if at+propsLen > len(buf) {
		return nil, storage.NewError(storage.RetCIO, "flat record rec-props overflow buffer")
	}
	fr.props = buf[at : at+propsLen]
	at += propsLen

	if at+2 > len(buf) {
		return nil, storage.NewError(storage.RetCIO, "flat record bin count missing")
	}
	nBins := int(binary.LittleEndian.Uint16(buf[at:]))
	at += 2

	fr.bins = make([]storage.Bin, 0, nBins)
	for i := 0; i < nBins; i++ {
		if at+1 > len(buf) {
			return nil, storage.NewError(storage.RetCIO,
				fmt.Sprintf("flat record bin %d name length missing", i))
		}
		nameLen := int(buf[at])
		at++

		if at+nameLen+4 > len(buf) {
			return nil, storage.NewError(storage.RetCIO,
				fmt.Sprintf("flat record bin %d name overflow buffer", i))
		}
		name := string(buf[at : at+nameLen])
		at += nameLen

		particleLen := int(binary.LittleEndian.Uint32(buf[at:]))
		at += 4
		if at+particleLen > len(buf) {
			return nil, storage.NewError(storage.RetCIO,
				fmt.Sprintf("flat record bin %d particle overflow buffer", i))
		}

		particle := make([]byte, particleLen)
		copy(particle, buf[at:])
		at += particleLen

		fr.bins = append(fr.bins, storage.Bin{Name: name, Particle: particle})
	}

	return fr, nil
}

// --------------------------------------------------------------------------
// Device Header Format
// --------------------------------------------------------------------------

// The device header occupies the first headerSize bytes of the file:
//
//	[8]     magic
//	uint32  format version
//	uint32  eviction void-time watermark
//	per partition (NumPartitions): uint64 version | uint8 state
//
// The data region of write blocks begins at headerSize.

const (
	headerMagic   = "ASDEVICE"
	headerVersion = 1
	headerSize    = 64 * 1024

	headerFixed   = 8 + 4 + 4
	headerPerPart = 8 + 1
)

// encodeHeader packs the header fields into a headerSize buffer.
func encodeHeader(evictVoidTime uint32, parts *[storage.NumPartitions]storage.PartitionInfo) []byte {
	buf := make([]byte, headerSize)

	copy(buf, headerMagic)
	binary.LittleEndian.PutUint32(buf[8:], headerVersion)
	binary.LittleEndian.PutUint32(buf[12:], evictVoidTime)

	at := headerFixed
	for i := range parts {
		binary.LittleEndian.PutUint64(buf[at:], parts[i].Version)
		buf[at+8] = parts[i].State
		at += headerPerPart
	}

	return buf
}

// decodeHeader validates and unpacks a device header.
func decodeHeader(buf []byte) (evictVoidTime uint32, parts [storage.NumPartitions]storage.PartitionInfo, err error) {
	if len(buf) < headerFixed+storage.NumPartitions*headerPerPart {
		return 0, parts, storage.NewError(storage.RetCIO, "device header truncated")
	}

	if string(buf[:8]) != headerMagic {
		return 0, parts, storage.NewError(storage.RetCIO, "device header magic mismatch")
	}

	if v := binary.LittleEndian.Uint32(buf[8:]); v != headerVersion {
		return 0, parts, storage.NewError(storage.RetCIO,
			fmt.Sprintf("unsupported device header version %d (expected %d)", v, headerVersion))
	}

	evictVoidTime = binary.LittleEndian.Uint32(buf[12:])

	at := headerFixed
	for i := range parts {
		parts[i].Version = binary.LittleEndian.Uint64(buf[at:])
		parts[i].State = buf[at+8]
		at += headerPerPart
	}

	return evictVoidTime, parts, nil
}
