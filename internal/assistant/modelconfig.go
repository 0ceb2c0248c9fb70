package assistant

const (
	FlashModel = "gemini-2.5-flash"
	ProModel   = "gemini-2.5-pro"

	// MaxThinkingBudget is the reasoning budget used by thinking mode.
	MaxThinkingBudget = 32768
)

// ModelConfig is the option set sent with a request. It is one of
// DefaultConfig, ThinkingConfig or SearchGroundedConfig; the unexported
// method keeps the set closed so callers can switch on it exhaustively.
type ModelConfig interface {
	ModelName() string
	isModelConfig()
}

type DefaultConfig struct{}

type ThinkingConfig struct {
	Budget int32
}

// SearchGroundedConfig enables the Google Search tool.
type SearchGroundedConfig struct{}

func (DefaultConfig) ModelName() string        { return FlashModel }
func (ThinkingConfig) ModelName() string       { return ProModel }
func (SearchGroundedConfig) ModelName() string { return FlashModel }

func (DefaultConfig) isModelConfig()        {}
func (ThinkingConfig) isModelConfig()       {}
func (SearchGroundedConfig) isModelConfig() {}

// ResolveModelConfig maps a mode to its option set. It has no hidden state.
func ResolveModelConfig(mode Mode) ModelConfig {
	switch mode {
	case ModeThinking:
		return ThinkingConfig{Budget: MaxThinkingBudget}
	case ModeSearchGrounded:
		return SearchGroundedConfig{}
	default:
		return DefaultConfig{}
	}
}
