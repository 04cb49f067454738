// Package index holds the two derived search views over the chunk store,
// a TF-IDF term index and an embedding vector index, plus the consistency
// manager that decides whether persisted vectors can be trusted.
//
// Built indexes are immutable snapshots. Build publishes a new snapshot
// atomically, so searches running concurrently with a rebuild finish on the
// snapshot they started with.
package index
