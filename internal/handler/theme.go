package handler

import (
	"net/http"

	"github.com/dukerupert/desklist/internal/config"
)

// ThemeHandler projects the configured theme to the presentation layer.
type ThemeHandler struct {
	theme config.Theme
}

func NewThemeHandler(theme config.Theme) *ThemeHandler {
	return &ThemeHandler{theme: theme}
}

func (h *ThemeHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.theme)
}
