// Package docstore provides a crash-tolerant, session-partitioned JSON
// document store with a derived secondary index.
//
// # Layout
//
// Each collection owns one directory of partition files, one file per
// session, plus a single index file next to it:
//
//	<baseDir>/.research/<collection>/<sessionID>-<collection>.json
//	<baseDir>/.research/<collection>-index.json
//
// A partition holds the full document list for one session and is always
// rewritten whole. The index is a denormalized projection of every
// document's queryable attributes across all sessions; it holds no
// information that is not derivable from the partitions and can always be
// reconstructed from them via [Store.RebuildIndex].
//
// # Concurrency: Per-Collection FIFO Locking
//
// All mutations go through [Locker.WithLock], keyed by collection. The
// lock is held across the entire read-modify-write sequence (read
// partition, mutate in memory, write partition, update index), which is
// what prevents lost updates when two upserts race on the same partition.
// Reads issued outside the accessor observe partitions without
// serialization and may see a partition mid-transition; callers needing a
// consistent view route through the same lock or accept eventual
// consistency.
//
// # Failure Semantics
//
// Expected absence (no file, no document, no session) never returns an
// error. Structural corruption degrades locally: a plain load logs and
// returns an empty list, a rebuild records a [Warning] and continues with
// the remaining files. Only I/O failures unrelated to absence propagate.
package docstore
