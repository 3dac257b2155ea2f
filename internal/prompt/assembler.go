package prompt

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTemplate formats the user turn when no template file is configured.
// {context} and {query} are literal placeholders.
const DefaultTemplate = "Context:\n{context}\n\nQuestion:\n{query}\n\nAnswer:"

// Prompt file names looked up in the prompts folder. Both are optional.
const (
	systemPromptFile = "system_prompt.txt"
	chatTemplateFile = "chat_response_prompt.txt"
)

// Assembler builds the exact message sequence sent to the generation
// provider: [System?, ...history, User(template(context, query))].
type Assembler struct {
	systemPrompt string
	template     string
}

// NewAssembler creates an Assembler with an explicit system prompt and
// template. An empty template selects DefaultTemplate.
func NewAssembler(systemPrompt, template string) *Assembler {
	if template == "" {
		template = DefaultTemplate
	}
	return &Assembler{systemPrompt: systemPrompt, template: template}
}

// LoadAssembler reads the system prompt and chat template from the prompts
// folder. Missing files fall back to an empty system prompt and the default
// template; read errors are logged, not fatal.
func LoadAssembler(promptsDir string, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}

	systemPrompt := readPromptFile(filepath.Join(promptsDir, systemPromptFile), logger)
	template := readPromptFile(filepath.Join(promptsDir, chatTemplateFile), logger)

	return NewAssembler(systemPrompt, template)
}

func readPromptFile(path string, logger *slog.Logger) string {
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("reading prompt file", "path", path, "error", err)
		}
		return ""
	}
	return strings.TrimSpace(string(content))
}

// SystemPrompt returns the configured system prompt ("" when none).
func (a *Assembler) SystemPrompt() string {
	return a.systemPrompt
}

// Format substitutes context and query into the user-turn template.
func (a *Assembler) Format(context, query string) string {
	out := strings.ReplaceAll(a.template, "{context}", context)
	return strings.ReplaceAll(out, "{query}", query)
}

// Build assembles the full message sequence for one generation call.
// history is the session history before the current turn; an empty system
// prompt is omitted entirely.
func (a *Assembler) Build(history []Message, context, query string) []Message {
	messages := make([]Message, 0, len(history)+2)
	if a.systemPrompt != "" {
		messages = append(messages, System(a.systemPrompt))
	}
	messages = append(messages, history...)
	messages = append(messages, User(a.Format(context, query)))
	return messages
}
