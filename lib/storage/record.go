package storage

import (
	"encoding/hex"
)

// --------------------------------------------------------------------------
// Digest
// --------------------------------------------------------------------------

// DigestSize is the length of a record's content digest in bytes.
const DigestSize = 20

// Digest uniquely identifies a record within a namespace.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// NewDigest derives a digest from a set name and a user key. The index
// structure owns digest generation in the full server; this FNV-1a based
// derivation covers the storage layer's own needs (tests, tools).
func NewDigest(setName string, key []byte) Digest {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	var d Digest

	// Fill the digest with four seeded FNV-1a rounds over set+key so all
	// twenty bytes carry hash material, not just the first eight.
	for round := 0; round < 4; round++ {
		hash := uint64(offset64) ^ (uint64(round+1) * prime64)
		for i := 0; i < len(setName); i++ {
			hash ^= uint64(setName[i])
			hash *= prime64
		}
		hash ^= 0xff
		hash *= prime64
		for i := 0; i < len(key); i++ {
			hash ^= uint64(key[i])
			hash *= prime64
		}
		for i := 0; i < 8; i++ {
			d[(round*5+i)%DigestSize] ^= byte(hash >> (8 * i))
		}
	}

	return d
}

// --------------------------------------------------------------------------
// Record (index entry subset)
// --------------------------------------------------------------------------

// Record is the subset of an index entry the storage layer reads and
// writes: key storage, the bin-space pointer, set membership and the
// device-resident location. The index structure itself - allocation,
// hashing, digest-keyed lookup - is an external collaborator.
type Record struct {
	Digest Digest

	// SetID is the owning set, 0 for the default set.
	SetID uint16

	// VoidTime is the absolute expiration timestamp, 0 for no expiry.
	VoidTime uint32

	// KeyStored marks that the client sent a key to be stored with the
	// record. Key holds the index-resident copy when the namespace mirrors
	// data in memory; device-only namespaces keep the key on the device.
	KeyStored bool
	Key       []byte

	// Tombstone marks a durably deleted record awaiting the tomb raider.
	Tombstone bool

	// DeviceRBlock is the record's device location (0 = none). Owned by the
	// device engine.
	DeviceRBlock uint64

	// binSpace is the separate in-memory bin allocation, present only when
	// the namespace mirrors data in memory and the record has been written.
	binSpace []Bin
}

// BinSpace returns the record's in-memory bins, nil if absent.
func (r *Record) BinSpace() []Bin {
	return r.binSpace
}

// HasBinSpace reports whether a separate bin-space allocation exists.
func (r *Record) HasBinSpace() bool {
	return r.binSpace != nil
}

// SetBinSpace replaces the record's in-memory bins.
func (r *Record) SetBinSpace(bins []Bin) {
	r.binSpace = bins
}

// --------------------------------------------------------------------------
// Bin
// --------------------------------------------------------------------------

// Bin is a single named value within a record. Particle encoding is an
// external collaborator - the storage layer treats particles as opaque
// bytes and only needs their size for accounting.
type Bin struct {
	Name     string
	Particle []byte
}

// ParticleSize returns the in-memory size of the bin's value.
func (b *Bin) ParticleSize() uint64 {
	return uint64(len(b.Particle))
}
