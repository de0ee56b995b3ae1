// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Capabilities
//
//   - TextExtractor: Extracts plain text from a PDF
//   - EmbeddingService: Generates vector embeddings
//   - LLMService: Chat completion used to generate answers
//   - VectorStore: Point persistence and similarity search (Qdrant, SQLite, memory)
//
// # Engine Bookkeeping
//
//   - RunStore: Workflow run persistence
//   - StepStore: Memoised step results keyed by (run ID, step name)
//
// # Configuration
//
//   - ConfigStore: Application configuration
//   - PromptStore: User-customisable prompt templates
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
