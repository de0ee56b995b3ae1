package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Default prompt templates, used when no PromptStore is configured.
const (
	defaultSystemPrompt = "You answer questions using only the provided context."

	defaultAnswerPrompt = `Use the following context to answer the question.

Context:
%s

Question: %s
Answer concisely using the context above.`
)

// PromptBuilder assembles the messages sent to the chat model.
// Assembly is pure: the same contexts and question give the same prompt.
type PromptBuilder struct {
	store driven.PromptStore
}

// NewPromptBuilder creates a builder that reads templates from store.
// A nil store uses the built-in templates.
func NewPromptBuilder(store driven.PromptStore) *PromptBuilder {
	return &PromptBuilder{store: store}
}

// System returns the system instruction.
func (b *PromptBuilder) System() string {
	return b.load(driven.PromptRAGSystem, defaultSystemPrompt)
}

// Answer renders the user prompt with contexts as "- " bulleted lines.
func (b *PromptBuilder) Answer(contexts []string, question string) string {
	lines := make([]string, len(contexts))
	for i, c := range contexts {
		lines[i] = "- " + c
	}
	return fmt.Sprintf(b.load(driven.PromptRAGAnswer, defaultAnswerPrompt), strings.Join(lines, "\n\n"), question)
}

// Messages returns the system and user messages for one question.
func (b *PromptBuilder) Messages(contexts []string, question string) []driven.ChatMessage {
	return []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: b.System()},
		{Role: driven.RoleUser, Content: b.Answer(contexts, question)},
	}
}

func (b *PromptBuilder) load(name, fallback string) string {
	if b.store == nil {
		return fallback
	}
	tmpl, err := b.store.Load(name)
	if err != nil || strings.TrimSpace(tmpl) == "" {
		logger.Warn("prompt %s unavailable, using default: %v", name, err)
		return fallback
	}
	return tmpl
}
