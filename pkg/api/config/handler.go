package config

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/pipeline"
	"bizplan/pkg/core/projection"
)

type Response struct {
	StoreDriver string                    `json:"store_driver"`
	Horizon     int                       `json:"default_horizon"`
	Params      projection.Params         `json:"params"`
	Validation  pipeline.ValidationConfig `json:"validation"`
}

type CheckResponse struct {
	Overrides map[string]map[int]float64 `json:"overrides"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	StoreDriver string
	Config      pipeline.Config
	Catalog     *assumption.Catalog
}

// NewHandler creates a new config handler
func NewHandler(storeDriver string, cfg pipeline.Config, catalog *assumption.Catalog) *Handler {
	return &Handler{
		StoreDriver: storeDriver,
		Config:      cfg,
		Catalog:     catalog,
	}
}

// RegisterRoutes registers the config routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.HandleConfig)
	r.Post("/config/overrides/check", h.HandleCheckOverrides)
}

// HandleConfig returns the effective engine settings.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		StoreDriver: h.StoreDriver,
		Horizon:     h.Config.DefaultHorizon,
		Params:      h.Config.Params,
		Validation:  h.Config.Validation,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleCheckOverrides parses an override document and echoes it back keyed
// by catalog key, so clients can check a scenario file before saving it.
func (h *Handler) HandleCheckOverrides(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	overrides, err := assumption.DecodeOverrides(body, h.Catalog)
	if err == nil {
		err = overrides.Validate()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := CheckResponse{Overrides: make(map[string]map[int]float64, len(overrides))}
	for id, byYear := range overrides {
		def, _ := h.Catalog.Get(id)
		resp.Overrides[def.Key] = byYear
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
