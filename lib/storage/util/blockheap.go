// This file provides a keyed min-heap used by the device engine to track
// defragmentation candidates.
//
// The heap orders write blocks by used bytes (emptiest first - the best
// defrag candidate), while the side map gives O(1) access by block id so
// a block's priority can be updated when records land in or leave it, and
// a block can be removed outright once it has been reclaimed.
package util

import (
	"container/heap"
)

// blockItem is one write block scheduled for defragmentation, keyed by
// block id and prioritized by its remaining used bytes.
type blockItem struct {
	Block uint64 // Block id
	Used  uint64 // Used bytes - heap priority, lowest first
	index int    // Index in the heap, maintained by the heap package
}

// BlockHeap is a min-heap of defrag candidate blocks with key-based access.
//
// Not thread-safe - the device engine serializes access with its own lock.
type BlockHeap struct {
	items    []*blockItem
	itemsMap map[uint64]*blockItem
}

// NewBlockHeap creates an empty defrag candidate heap.
func NewBlockHeap() *BlockHeap {
	return &BlockHeap{
		items:    make([]*blockItem, 0),
		itemsMap: make(map[uint64]*blockItem),
	}
}

// Len returns the number of candidate blocks (part of heap.Interface).
func (bh *BlockHeap) Len() int { return len(bh.items) }

// Less orders blocks by used bytes, emptiest first (part of heap.Interface).
func (bh *BlockHeap) Less(i, j int) bool {
	return bh.items[i].Used < bh.items[j].Used
}

// Swap exchanges items at positions i and j (part of heap.Interface).
func (bh *BlockHeap) Swap(i, j int) {
	bh.items[i], bh.items[j] = bh.items[j], bh.items[i]
	bh.items[i].index = i
	bh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface).
func (bh *BlockHeap) Push(x interface{}) {
	n := len(bh.items)
	item := x.(*blockItem)
	item.index = n
	bh.items = append(bh.items, item)
	bh.itemsMap[item.Block] = item
}

// Pop removes and returns the emptiest block (part of heap.Interface).
func (bh *BlockHeap) Pop() interface{} {
	old := bh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	bh.items = old[:n-1]
	delete(bh.itemsMap, item.Block)
	return item
}

// Add inserts a candidate block or updates its used bytes if present.
func (bh *BlockHeap) Add(block, used uint64) {
	if item, exists := bh.itemsMap[block]; exists {
		item.Used = used
		heap.Fix(bh, item.index)
		return
	}

	heap.Push(bh, &blockItem{
		Block: block,
		Used:  used,
	})
}

// Remove drops a block from the candidate set, e.g. after reclamation.
// Returns its used bytes and whether it was present.
func (bh *BlockHeap) Remove(block uint64) (uint64, bool) {
	item, exists := bh.itemsMap[block]
	if !exists {
		return 0, false
	}

	heap.Remove(bh, item.index)
	return item.Used, true
}

// PopEmptiest removes and returns the best defrag candidate.
func (bh *BlockHeap) PopEmptiest() (block, used uint64, ok bool) {
	if len(bh.items) == 0 {
		return 0, 0, false
	}

	item := heap.Pop(bh).(*blockItem)
	return item.Block, item.Used, true
}

// Peek returns the best defrag candidate without removing it.
func (bh *BlockHeap) Peek() (block, used uint64, ok bool) {
	if len(bh.items) == 0 {
		return 0, 0, false
	}
	return bh.items[0].Block, bh.items[0].Used, true
}

// Contains checks whether a block is scheduled for defragmentation.
func (bh *BlockHeap) Contains(block uint64) bool {
	_, exists := bh.itemsMap[block]
	return exists
}
