// Package core holds the domain model shared by every stage of a
// spreadsheet-to-table run, plus the helpers those stages agree on.
//
// The package has no knowledge of any particular database or file format.
// Destinations are reached through [Catalog] and spreadsheets through
// [Source]; implementations live in the catalog and source packages.
//
// # Pipeline stages
//
//   - inference: raw column values -> [InferredType]
//   - matcher: source columns x destination columns -> [ColumnMapping]
//   - validate: mapped rows -> [ValidationResult]
//   - keys: destination constraints -> [UniqueIdentifier]
//   - dedup: validated rows -> [FilterResult]
//
// # Value parsing
//
// Cells arrive as strings (CSV) or loosely typed values (XLSX). The Parse*
// functions in convert.go are the single definition of what counts as an
// integer, decimal, boolean, date or datetime, and both the validator and the
// transform step use them.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Codes
// are grouped by family:
//
//   - CAT001-CAT099: catalog errors (connection, metadata, permissions)
//   - SRC001-SRC099: spreadsheet errors (format, size, encoding, empty sheet)
//   - MAP001-MAP099: mapping errors
//   - VAL001-VAL099: validation errors
//   - DUP001-DUP099: duplicate filtering errors
//   - RUN001-RUN099: run lifecycle (busy, cancelled, timed out)
package core
