package storage

import (
	"testing"
)

func TestDigestDeterministic(t *testing.T) {
	a := NewDigest("orders", []byte("order-1"))
	b := NewDigest("orders", []byte("order-1"))

	if a != b {
		t.Errorf("same set and key produced different digests")
	}
}

func TestDigestSpreads(t *testing.T) {
	seen := map[Digest]bool{
		NewDigest("orders", []byte("order-1")): true,
	}

	for _, probe := range []struct {
		set string
		key string
	}{
		{"orders", "order-2"},
		{"users", "order-1"},
		{"", "order-1"},
		{"orders", ""},
	} {
		d := NewDigest(probe.set, []byte(probe.key))
		if seen[d] {
			t.Errorf("digest collision for set %q key %q", probe.set, probe.key)
		}
		seen[d] = true
	}
}

func TestDigestString(t *testing.T) {
	d := NewDigest("s", []byte("k"))

	if len(d.String()) != 2*DigestSize {
		t.Errorf("digest hex string has length %d, want %d", len(d.String()), 2*DigestSize)
	}
}

func TestRecordBinSpace(t *testing.T) {
	var r Record

	if r.HasBinSpace() {
		t.Errorf("fresh record reports bin space")
	}

	r.SetBinSpace([]Bin{{Name: "a", Particle: []byte("v")}})
	if !r.HasBinSpace() {
		t.Errorf("record reports no bin space after set")
	}
	if len(r.BinSpace()) != 1 {
		t.Errorf("bin space holds %d bins, want 1", len(r.BinSpace()))
	}

	r.SetBinSpace(nil)
	if r.HasBinSpace() {
		t.Errorf("record reports bin space after clearing")
	}
}
