// Package assistant turns a prompt, the prior conversation and any attached
// files into a single model request, and turns a model response back into
// displayable text plus its citation sources.
package assistant

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label is the speaker prefix used when a turn is rendered into a prompt.
func (r Role) Label() string {
	if r == RoleUser {
		return "User"
	}
	return "Assistant"
}

// Turn is one message in a conversation. Turns are values and are never
// modified once appended to a history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn and AssistantTurn are shorthands for building turns.
func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// AttachedFile is the text of one file attached to a single request.
type AttachedFile struct {
	Name    string `json:"name"`
	Content string `json:"-"`
}

// GroundingSource is a web citation returned with a search-grounded answer.
type GroundingSource struct {
	URI   string  `json:"uri"`
	Title *string `json:"title"`
}

// DisplayName returns the title when present, otherwise the URI.
func (s GroundingSource) DisplayName() string {
	if s.Title != nil && *s.Title != "" {
		return *s.Title
	}
	return s.URI
}

// Request is a fully composed model request.
type Request struct {
	Prompt string
	Mode   Mode
	Config ModelConfig
}

// Result is a normalized model answer.
type Result struct {
	Text    string            `json:"text"`
	Sources []GroundingSource `json:"sources"`
}
