// Package handlers provides HTTP handlers for the RideWise API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ridewise-ai/ridewise/internal/catalog"
)

// CatalogHandler serves read-only catalog metadata.
type CatalogHandler struct {
	logger zerolog.Logger
	cat    *catalog.Catalog
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(logger zerolog.Logger, cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{logger: logger, cat: cat}
}

// AttributeDTO describes one selectable preference dimension.
type AttributeDTO struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Values []string `json:"values,omitempty"` // categorical domain, sorted
}

// Attributes handles GET /catalog/attributes.
func (h *CatalogHandler) Attributes(w http.ResponseWriter, r *http.Request) {
	specs := h.cat.SelectableSpecs()
	dtos := make([]AttributeDTO, 0, len(specs))
	for _, spec := range specs {
		dtos = append(dtos, AttributeDTO{
			Name:   spec.Name,
			Kind:   string(spec.Kind),
			Values: h.cat.DomainValues(spec.Name),
		})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"attributes": dtos})
}

// ModelDTO is one catalog row with its raw attributes.
type ModelDTO struct {
	Model string              `json:"model"`
	Attrs catalog.Preferences `json:"attributes"`
}

// Models handles GET /catalog/models.
func (h *CatalogHandler) Models(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ModelDTO, 0, h.cat.Len())
	for i := 0; i < h.cat.Len(); i++ {
		row := h.cat.Row(i)
		dtos = append(dtos, ModelDTO{Model: row.Model, Attrs: row.Attrs})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"models": dtos})
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
