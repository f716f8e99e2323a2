// Package core provides the business logic for patrimônio inventory audits.
//
// This package is the heart of the audit tool, containing all domain logic
// independent of any UI or transport layer. It is used by the web server,
// the auditctl CLI and the terminal console without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - CSV Codec: [ParseCSV] and [SerializeCSV] convert between CSV text and
//     records, [DecodeText] turns uploaded bytes into text.
//   - Item Store: [ItemStore] is the authoritative tombo -> [Item] mapping.
//   - Search: [SearchIndex] answers exact and fuzzy lookups over the store.
//   - Actions: [Engine] applies audit outcomes and enforces the status lifecycle.
//   - Persistence: [Gateway] snapshots the store into a [SnapshotStore] slot and
//     runs the restore handshake on startup.
//   - Session: [Session] owns all of the above plus the current query, page
//     and selection. There is no package-level mutable state.
//
// # Import Flow
//
//  1. Uploaded bytes are decoded with [DecodeText] (default UTF-8, BOM stripped)
//  2. Text is handed to the [ParseService] worker, one request at a time
//  3. [Session.Import] loads the records into the store under the session lock
//  4. The store is snapshotted so a restart can offer to restore it
//
// # Status Lifecycle
//
// Every item starts as [StatusPending]. Actions move it to one of the four
// terminal statuses. There is no transition back to Pending. Whether an action
// may be applied again to an already processed item is controlled by
// [EngineOptions.AllowReprocessing].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IMP001-IMP006: Import errors (missing columns, malformed CSV, encoding)
//   - LKP001: Lookup errors
//   - ACT001-ACT005: Action errors (missing targets, cancelled input)
//   - SES001-SES003: Session errors (restore pending, parse in flight)
//
// Persistence failures are never returned to callers. They are logged and the
// session keeps working in memory.
package core
