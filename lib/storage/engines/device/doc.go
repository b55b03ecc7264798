/*
Package device implements the device-backed storage engine.

Records are flattened into a compact wire form and appended to fixed-size
write blocks. Full blocks travel through a bounded write-back queue to a
background flusher; a full queue makes the engine report itself
overloaded. A 64 KiB header at the start of the backing file persists the
per-partition info table and the namespace's smallest eviction void-time,
enabling warm restarts: init re-reads the header and scans the data
region to rebuild block usage before the namespace is reported loaded.

Block reclamation is one-way: rewrites always land in a fresh block and
release the record's previous bytes, so blocks drain toward empty. Blocks
below the low-water utilization mark become defrag candidates, and the
sweep (run by the tomb raider and on demand) returns fully drained blocks
to the free list.

Thread-safety: all exported methods are safe for concurrent use. Record
appends happen atomically under the engine lock, so readers observe a
whole flat record or none of it.
*/
package device
