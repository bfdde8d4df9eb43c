// Package domain defines the core types of the statistics pipeline.
//
// Types in this package are value objects shared by the mapping resolver,
// duplicate detector, identity resolver, aggregation engine and the HTTP
// layer. They carry no I/O of their own.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
