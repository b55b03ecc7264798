package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariesdevil/aerospike-server/lib/storage"
)

func TestFlatRoundTrip(t *testing.T) {
	r := &storage.Record{
		Digest:   storage.NewDigest("orders", []byte("order-1")),
		VoidTime: 1234567,
	}

	rd := &storage.RecordDescriptor{
		R: r,
		Bins: []storage.Bin{
			{Name: "total", Particle: []byte("99.95")},
			{Name: "note", Particle: nil},
		},
		NumBins: 2,
	}

	setName := []byte("orders")
	rd.Props.Init(make([]byte, storage.RecPropsSizeofField(len(setName))))
	rd.Props.AddField(storage.RecPropsFieldSetName, setName)

	buf := encodeFlat(rd)
	require.Equal(t, flatSize(rd), len(buf))

	fr, err := decodeFlat(buf)
	require.NoError(t, err)

	assert.Equal(t, r.Digest, fr.digest)
	assert.EqualValues(t, 1234567, fr.voidTime)
	assert.False(t, fr.tombstone)

	gotSet, found := storage.RecPropsGetValue(fr.props, storage.RecPropsFieldSetName)
	require.True(t, found)
	assert.Equal(t, setName, gotSet)

	require.Len(t, fr.bins, 2)
	assert.Equal(t, "total", fr.bins[0].Name)
	assert.Equal(t, []byte("99.95"), fr.bins[0].Particle)
	assert.Equal(t, "note", fr.bins[1].Name)
	assert.Empty(t, fr.bins[1].Particle)
}

func TestFlatTombstoneFlag(t *testing.T) {
	rd := &storage.RecordDescriptor{
		R: &storage.Record{
			Digest:    storage.NewDigest("s", []byte("gone")),
			Tombstone: true,
		},
		Bins:    []storage.Bin{{Name: "v", Particle: []byte("x")}},
		NumBins: 1,
	}

	fr, err := decodeFlat(encodeFlat(rd))
	require.NoError(t, err)
	assert.True(t, fr.tombstone)
}

func TestFlatDecodeRejectsGarbage(t *testing.T) {
	// Zero length prefix marks block padding, not a record.
	_, err := decodeFlat(make([]byte, 64))
	require.Error(t, err)

	// Truncated buffer.
	rd := &storage.RecordDescriptor{
		R:       &storage.Record{Digest: storage.NewDigest("s", []byte("k"))},
		Bins:    []storage.Bin{{Name: "v", Particle: []byte("payload")}},
		NumBins: 1,
	}
	buf := encodeFlat(rd)

	for cut := 1; cut < len(buf); cut += 7 {
		if _, err := decodeFlat(buf[:cut]); err == nil {
			t.Errorf("decode of a %d-byte truncation succeeded", cut)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	var parts [storage.NumPartitions]storage.PartitionInfo
	parts[0] = storage.PartitionInfo{Version: 1, State: 1}
	parts[2048] = storage.PartitionInfo{Version: 99, State: 3}
	parts[storage.NumPartitions-1] = storage.PartitionInfo{Version: 7, State: 2}

	buf := encodeHeader(424242, &parts)
	require.Len(t, buf, headerSize)

	evictVoidTime, gotParts, err := decodeHeader(buf)
	require.NoError(t, err)

	assert.EqualValues(t, 424242, evictVoidTime)
	assert.Equal(t, parts, gotParts)
}

func TestHeaderRejectsCorruption(t *testing.T) {
	var parts [storage.NumPartitions]storage.PartitionInfo

	buf := encodeHeader(0, &parts)
	buf[0] ^= 0xFF // break the magic

	_, _, err := decodeHeader(buf)
	require.Error(t, err)
	assert.Equal(t, storage.RetCIO, storage.CodeOf(err))
}
