package handlers

import (
	"net/http"

	"code-assistant/internal/assistant"
	"code-assistant/internal/models"
)

// ListModes returns the request presets the UI can toggle between.
func ListModes(w http.ResponseWriter, r *http.Request) {
	modes := make([]models.ModeInfo, 0, len(assistant.Modes()))
	for _, m := range assistant.Modes() {
		modes = append(modes, models.ModeInfo{
			Name:        m.String(),
			Model:       assistant.ResolveModelConfig(m).ModelName(),
			Description: m.Description(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"modes": modes})
}
