// Package domain defines the core entities of the PDF question-answering pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document and Chunk: extracted text and its retrieval units
//   - Point: a persisted (id, vector, payload) record
//   - SearchResult and QueryResult: per-query outputs
//   - WorkflowRun and StepRecord: durable workflow bookkeeping
//   - Settings: application configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
