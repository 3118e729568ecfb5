// Package docstore provides a hierarchical document store abstraction.
//
// # Architecture
//
// Documents live at slash-separated paths alternating collection and
// document segments:
//
//	applications/demo/users/ann/sessions/s1/events/e1
//
// A path with an even number of segments addresses a document; an odd
// number addresses a collection. Collections need no explicit creation
// and disappear when their last document is deleted.
//
// # Capabilities
//
// The Store interface is the minimal surface the session engine needs:
//
//   - Get/Set/Merge/Update/Delete: point operations on one document.
//     Merge upserts top-level fields; Update writes dotted field paths
//     into an existing document and fails with ErrNotFound otherwise.
//   - Query: one order-by field (ascending or descending), one optional
//     inequality filter, and an optional result limit.
//   - Batch: an ordered set of heterogeneous writes committed as a
//     single all-or-nothing unit.
//
// # Implementations
//
//   - MemoryStore: mutex-guarded map, for tests and mem:// URIs.
//   - SQLiteStore: one JSON row per document using modernc.org/sqlite,
//     with json_extract for ordered/filtered queries and SQL
//     transactions for batch atomicity.
//
// # Consistency
//
// Both backends provide read-after-write consistency for single
// documents and atomicity for batches. Nothing beyond a single batch is
// transactional.
//
// # Error Handling
//
//   - ErrNotFound: requested document does not exist
//
// All methods accept context.Context for cancellation support.
package docstore
