// Package core provides the business logic for member bulk imports.
//
// It has no transport dependencies and is shared by the HTTP server and the
// importctl command.
//
// # Pipeline
//
// An import moves through three steps:
//
//  1. [ReadImportFile] reads the upload, drops a UTF-8 BOM and enforces the size cap
//  2. [ParseMembers] checks the header and turns each data line into an [ImportRow]
//  3. [Importer.Run] creates every valid row through a [MemberCreator]
//
// Rows that fail validation are kept with their errors so they can be shown,
// but only valid rows reach the creator. A row the creator rejects is counted
// as failed and the run continues.
//
// # Sessions
//
// [Service] keeps per-user import sessions in memory. A session holds its
// settings, the parsed rows and at most one running import. Progress is fanned
// out to subscribers after every row, and finished runs are written to a
// [HistoryStore] when one is configured.
//
// # Error Handling
//
// Pipeline failures are [ImportError] values tagged with an [ErrorKind].
// [MapError] turns any error into a [UserMessage] with a support code:
//
//   - FILE001-FILE005: File errors (size, encoding, format)
//   - VAL004-VAL007: Header and row validation
//   - IMP001-IMP002: Nothing to import, cancelled run
//   - DB002-DB007: Store errors
//   - UPL001-UPL006: Session and run errors
package core
