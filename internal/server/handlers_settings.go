package server

import (
	"net/http"

	"atsforge/internal/store"
)

// getSettingsHandler returns the user's settings. The render key is
// never included in the response; only its presence is reported.
func (s *Server) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Store.GetUserSettings(r.Context(), userIDFrom(r))
	if err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	if settings == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"instruction_template": "",
			"render_key_set":       false,
		})
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"instruction_template": settings.InstructionTemplate,
		"render_key_set":       settings.RenderKey != "",
		"updated_at":           settings.UpdatedAt,
	})
}

// updateSettingsHandler creates or replaces the user's settings
func (s *Server) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	settings := &store.UserSettings{
		UserID:              userIDFrom(r),
		InstructionTemplate: req.InstructionTemplate,
		RenderKey:           req.RenderKey,
	}
	if err := s.Store.UpsertUserSettings(r.Context(), settings); err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	s.Logger.Info("User settings updated",
		"user_id", settings.UserID,
		"custom_template", settings.InstructionTemplate != "",
		"render_key_set", settings.RenderKey != "")

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"instruction_template": settings.InstructionTemplate,
		"render_key_set":       settings.RenderKey != "",
	})
}
