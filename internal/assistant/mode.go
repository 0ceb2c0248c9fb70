package assistant

import "fmt"

// Mode is the request preset chosen by the user.
type Mode int

const (
	ModeDefault Mode = iota
	ModeThinking
	ModeSearchGrounded
)

func (m Mode) String() string {
	switch m {
	case ModeThinking:
		return "thinking"
	case ModeSearchGrounded:
		return "search"
	default:
		return "default"
	}
}

// Description is the human readable summary printed by the CLI and listed by
// the modes endpoint.
func (m Mode) Description() string {
	switch m {
	case ModeThinking:
		return fmt.Sprintf("Thinking mode (%s)", ProModel)
	case ModeSearchGrounded:
		return fmt.Sprintf("Search-grounded mode (%s + Google Search)", FlashModel)
	default:
		return fmt.Sprintf("Default mode (%s)", FlashModel)
	}
}

// Modes lists every mode in display order.
func Modes() []Mode {
	return []Mode{ModeDefault, ModeThinking, ModeSearchGrounded}
}

// ModeSelector holds the two mode toggles exposed by the UI. At most one of
// them may be on.
type ModeSelector struct {
	Thinking       bool `json:"thinking"`
	SearchGrounded bool `json:"search"`
}

// ToggleThinking flips thinking mode. Turning it on clears search grounding.
func (s *ModeSelector) ToggleThinking() {
	s.Thinking = !s.Thinking
	if s.Thinking {
		s.SearchGrounded = false
	}
}

// ToggleSearch flips search grounding. Turning it on clears thinking mode.
func (s *ModeSelector) ToggleSearch() {
	s.SearchGrounded = !s.SearchGrounded
	if s.SearchGrounded {
		s.Thinking = false
	}
}

// Mode resolves the selector. Both toggles on is rejected rather than
// resolved by precedence.
func (s ModeSelector) Mode() (Mode, error) {
	switch {
	case s.Thinking && s.SearchGrounded:
		return ModeDefault, ErrConflictingModes
	case s.Thinking:
		return ModeThinking, nil
	case s.SearchGrounded:
		return ModeSearchGrounded, nil
	default:
		return ModeDefault, nil
	}
}

// ModeFromFlags resolves the CLI's --thinking and --search flags.
func ModeFromFlags(thinking, search bool) (Mode, error) {
	return ModeSelector{Thinking: thinking, SearchGrounded: search}.Mode()
}
