package assistant

import "strings"

const (
	fileContextHeader = "Here is the content of the files provided for context:\n\n"
	fileQuestionLead  = "\n\n---\n\nBased on the file content provided, please answer the following question:\n\n"
)

// Compose builds the request for prompt. File context comes first, then the
// prior turns, then the new prompt. A selector with both modes on is
// rejected before anything is built.
func Compose(history []Turn, prompt string, files []AttachedFile, sel ModeSelector) (*Request, error) {
	mode, err := sel.Mode()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if fileContext := BuildFileContext(files); fileContext != "" {
		b.WriteString(fileContext)
		b.WriteString(fileQuestionLead)
	}
	b.WriteString(BuildHistoryBlock(history))
	b.WriteString("User: ")
	b.WriteString(prompt)

	return &Request{
		Prompt: b.String(),
		Mode:   mode,
		Config: ResolveModelConfig(mode),
	}, nil
}

// BuildFileContext renders the attached files block, or "" when there are no
// files. No size cap is applied here.
func BuildFileContext(files []AttachedFile) string {
	if len(files) == 0 {
		return ""
	}

	sections := make([]string, len(files))
	for i, f := range files {
		sections[i] = "--- FILE: " + f.Name + " ---\n" + f.Content
	}
	return fileContextHeader + strings.Join(sections, "\n\n")
}

// BuildHistoryBlock renders prior turns one per paragraph with a trailing
// blank line, or "" when history is empty.
func BuildHistoryBlock(history []Turn) string {
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, len(history))
	for i, t := range history {
		lines[i] = t.Role.Label() + ": " + t.Content
	}
	return strings.Join(lines, "\n\n") + "\n\n"
}
