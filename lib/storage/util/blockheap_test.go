package util

import (
	"sort"
	"testing"
)

// TestNewBlockHeap tests the creation of a new BlockHeap
func TestNewBlockHeap(t *testing.T) {
	bh := NewBlockHeap()

	if bh == nil {
		t.Fatal("NewBlockHeap() returned nil")
	}

	if bh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", bh.Len())
	}
}

// TestAdd tests adding candidate blocks
func TestAdd(t *testing.T) {
	bh := NewBlockHeap()

	bh.Add(1, 1000)
	bh.Add(2, 2000)
	bh.Add(3, 500)

	if bh.Len() != 3 {
		t.Errorf("Heap should have 3 blocks, but has %d", bh.Len())
	}

	for _, block := range []uint64{1, 2, 3} {
		if !bh.Contains(block) {
			t.Errorf("Heap should contain block %d", block)
		}
	}

	// Min heap by used bytes - emptiest block first.
	block, used, ok := bh.Peek()
	if !ok {
		t.Fatal("Peek() should return a block")
	}
	if block != 3 || used != 500 {
		t.Errorf("Expected emptiest block to be (3,500), got (%d,%d)", block, used)
	}
}

// TestAddUpdates tests that re-adding a block updates its used bytes
func TestAddUpdates(t *testing.T) {
	bh := NewBlockHeap()

	bh.Add(1, 1000)
	bh.Add(2, 2000)

	// Block 1 drains further.
	bh.Add(1, 100)

	block, used, _ := bh.Peek()
	if block != 1 || used != 100 {
		t.Errorf("Expected emptiest to be (1,100), got (%d,%d)", block, used)
	}
	if bh.Len() != 2 {
		t.Errorf("Update must not grow the heap, has %d items", bh.Len())
	}

	// Block 2 fully drains.
	bh.Add(2, 0)

	block, used, _ = bh.Peek()
	if block != 2 || used != 0 {
		t.Errorf("Expected emptiest to be (2,0), got (%d,%d)", block, used)
	}
}

// TestRemove tests dropping a block from the candidate set
func TestRemove(t *testing.T) {
	bh := NewBlockHeap()

	bh.Add(1, 1000)
	bh.Add(2, 2000)
	bh.Add(3, 3000)

	used, ok := bh.Remove(2)
	if !ok {
		t.Fatal("Remove should report true for a present block")
	}
	if used != 2000 {
		t.Errorf("Remove should return used bytes 2000, got %d", used)
	}
	if bh.Len() != 2 {
		t.Errorf("Heap should have 2 blocks after removal, has %d", bh.Len())
	}
	if bh.Contains(2) {
		t.Error("Heap should not contain block 2 after removal")
	}

	if _, ok := bh.Remove(99); ok {
		t.Error("Remove should report false for an absent block")
	}
}

// TestPopEmptiestOrder tests that blocks pop in used-bytes order
func TestPopEmptiestOrder(t *testing.T) {
	bh := NewBlockHeap()

	blocks := []struct {
		block uint64
		used  uint64
	}{
		{5, 5000},
		{3, 3000},
		{1, 1000},
		{4, 4000},
		{2, 2000},
	}

	for _, b := range blocks {
		bh.Add(b.block, b.used)
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].used < blocks[j].used
	})

	for i, expected := range blocks {
		block, used, ok := bh.PopEmptiest()
		if !ok {
			t.Fatalf("Heap empty after %d pops, expected %d blocks", i, len(blocks))
		}
		if block != expected.block || used != expected.used {
			t.Errorf("Pop %d: expected (%d,%d), got (%d,%d)",
				i, expected.block, expected.used, block, used)
		}
	}

	if _, _, ok := bh.PopEmptiest(); ok {
		t.Error("PopEmptiest on an empty heap should report false")
	}
}

// TestPeekEmpty tests behavior when peeking an empty heap
func TestPeekEmpty(t *testing.T) {
	bh := NewBlockHeap()

	if _, _, ok := bh.Peek(); ok {
		t.Error("Peek on an empty heap should report false")
	}
}
