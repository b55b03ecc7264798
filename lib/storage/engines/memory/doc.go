// Package memory implements the in-memory storage engine kind.
//
// This engine almost entirely performs no-ops, because all the in-memory
// state is correct already - bin data lives in the index entry's bin
// space, which the record-access layer mutates under the record lock. The
// real implementations are the ones that must exist for every kind:
//
//   - InitNamespace signals completion immediately (nothing to load)
//   - RecordWrite commits the descriptor's bins to the index entry
//   - InfoGet serves the in-process partition version/state table
//   - Stats reports 100% available and zero used device bytes
//
// Note that a file-backed persistent main-memory namespace is NOT this
// kind - it is configured as the device kind with DataInMemory set, so the
// device engine's capacity and flush machinery applies.
package memory
