package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names return an error.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names.
const (
	// PromptRAGSystem is the system instruction sent with every answer request.
	// This prompt has no format placeholders.
	PromptRAGSystem = "rag_system"

	// PromptRAGAnswer wraps the retrieved contexts and the question.
	// The template expects two %s placeholders: the bulleted contexts, then the question.
	PromptRAGAnswer = "rag_answer"
)
