// Package storage is the storage-engine abstraction layer of the server:
// a uniform contract for record persistence, independent of whether a
// namespace's data lives purely in memory or is backed by a durable
// device-resident engine.
//
// The package focuses on:
//   - Per-namespace engine selection through a closed kind set, bound once
//     at configuration time
//   - A record-descriptor usage cycle mediating between an index entry and
//     its bin data for the scope of one read or write
//   - Memory accounting that keeps per-namespace and per-set byte counters
//     consistent with actual bin contents
//   - An orderly shutdown barrier that drains in-flight writes before
//     flushing outstanding state to durable storage
//
// Key Components:
//
//   - Engine: the interface every storage backend implements. Operations
//     that are meaningless for a kind (e.g. defragmentation for a pure
//     in-memory engine) get their documented default from the embedded
//     NoopEngine rather than a nil check at every call site.
//
//   - Namespace: a configured data container owning its engine value, its
//     byte counters, its per-set accounting registry and its in-process
//     partition version/state table.
//
//   - RecordDescriptor: a transient handle created by RecordCreate or
//     RecordOpen and finished by Close. Bins are valid only after a load
//     step, the key only after ResolveKey, and rec-props staging is
//     two-phase - RecPropsSize computes the exact size, StageRecProps
//     allocates and populates a buffer of exactly that size.
//
//   - LockTable: the fixed-size, digest-sharded table of record-level
//     locks. Concurrency control is at record granularity; no global lock
//     serializes record operations. During shutdown DrainAll acquires
//     every lock in index order and deliberately never releases them.
//
//   - Store: sequences namespace initialization (asynchronous per
//     namespace, with a progress ticker while loads run) and the two-phase
//     drain-then-flush shutdown.
//
// Concrete engines register themselves via RegisterEngine from their
// package init functions - import the engines/memory and engines/device
// packages for the standard kinds. The engine operation registry is
// immutable after startup and read without synchronization.
//
// Related Packages:
//
// The engines/memory package implements the in-memory kind: writes commit
// bins to the index entry's in-memory bin space, stats report full
// availability, everything device-shaped is a no-op.
//
// The engines/device package implements the device-backed kind: buffered
// write blocks with a background flusher, defragmentation bookkeeping,
// per-partition metadata persisted in the device header, and a tomb
// raider sweep.
//
// The testing package provides a standardized cross-engine test suite for
// Engine implementations.
package storage
