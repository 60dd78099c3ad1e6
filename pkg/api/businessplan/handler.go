// Package businessplan exposes clients, scenarios and plan runs over HTTP.
package businessplan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"bizplan/pkg/core/assumption"
	"bizplan/pkg/core/lineitem"
	"bizplan/pkg/core/pipeline"
	"bizplan/pkg/core/report"
	"bizplan/pkg/core/store"
	"bizplan/pkg/core/utils"
)

const maxBodyBytes = 1 << 20

// Handler serves the business plan endpoints.
type Handler struct {
	orchestrator *pipeline.Orchestrator
	repo         store.Repository
	log          zerolog.Logger
}

// NewHandler creates a new business plan handler.
func NewHandler(orchestrator *pipeline.Orchestrator, repo store.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		repo:         repo,
		log:          log.With().Str("handler", "businessplan").Logger(),
	}
}

// RegisterRoutes registers the business plan routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.HandleCatalog)

	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.HandleListClients)

		r.Route("/{client}", func(r chi.Router) {
			r.Get("/years", h.HandleYears)
			r.Get("/averages", h.HandleAverages)
			r.Post("/ledger", h.HandleImportLedger)
			r.Post("/plan", h.HandleRunPlan)

			r.Get("/scenarios", h.HandleListScenarios)
			r.Get("/scenarios/{name}", h.HandleGetScenario)
			r.Put("/scenarios/{name}", h.HandleSaveScenario)
			r.Delete("/scenarios/{name}", h.HandleDeleteScenario)
		})
	})

	r.Get("/runs/{id}", h.HandleGetRun)
	r.Get("/runs/{id}/report", h.HandleRunReport)
}

// planRequest is the body of POST /clients/{client}/plan. Overrides use the
// DecodeOverrides document format.
type planRequest struct {
	BaseYear     int             `json:"base_year"`
	Horizon      int             `json:"horizon"`
	HistoryYears []int           `json:"history_years"`
	Scenario     string          `json:"scenario"`
	Overrides    json.RawMessage `json:"overrides"`
}

// scenarioRequest is the body of PUT /clients/{client}/scenarios/{name}.
type scenarioRequest struct {
	Horizon   int             `json:"horizon"`
	Years     []int           `json:"years"`
	Overrides json.RawMessage `json:"overrides"`
}

// HandleCatalog returns the assumption catalog.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.orchestrator.Catalog().All())
}

// HandleListClients returns every client with stored history.
func (h *Handler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.repo.Clients(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if clients == nil {
		clients = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"clients": clients})
}

// HandleYears returns the stored years of a client.
func (h *Handler) HandleYears(w http.ResponseWriter, r *http.Request) {
	client := chi.URLParam(r, "client")
	years, err := h.orchestrator.AvailableYears(r.Context(), client)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if years == nil {
		years = []int{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"client": client, "years": years})
}

// HandleAverages returns the historical averages of a client. The optional
// years query parameter (comma separated) restricts the history window.
func (h *Handler) HandleAverages(w http.ResponseWriter, r *http.Request) {
	client := chi.URLParam(r, "client")
	years, err := parseYears(r.URL.Query().Get("years"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	averages, err := h.orchestrator.Averages(r.Context(), client, years)
	if err != nil {
		h.writeError(w, err)
		return
	}

	byKey := make(map[string]float64, len(averages))
	for _, def := range h.orchestrator.Catalog().All() {
		if v, ok := averages[def.ID]; ok {
			byKey[def.Key] = v
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"client": client, "averages": byKey})
}

// HandleImportLedger books a ledger document ({"2024": {"RI01": 1000}}) for
// the client against the default chart of accounts.
func (h *Handler) HandleImportLedger(w http.ResponseWriter, r *http.Request) {
	client := chi.URLParam(r, "client")
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var ledger lineitem.Ledger
	if isCSV(r) {
		ledger, err = decodeCSVLedger(body, client)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else if _, err := utils.SmartParse(string(body), &ledger); err != nil {
		http.Error(w, "Invalid ledger document", http.StatusBadRequest)
		return
	}
	if len(ledger) == 0 {
		http.Error(w, "Ledger has no years", http.StatusBadRequest)
		return
	}

	if err := store.ImportLedger(r.Context(), h.repo, client, ledger); err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info().Str("client", client).Ints("years", ledger.Years()).Msg("ledger imported")
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"client": client, "years": ledger.Years()})
}

func isCSV(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/csv"
}

// decodeCSVLedger reads a cliente, anno, codice, importo CSV whose rows must
// all belong to client.
func decodeCSVLedger(body []byte, client string) (lineitem.Ledger, error) {
	ledgers, err := store.DecodeLedgerCSV(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for name := range ledgers {
		if name != client {
			return nil, fmt.Errorf("csv has rows for client %q, expected only %q", name, client)
		}
	}
	return ledgers[client], nil
}

// HandleRunPlan runs the projection for a client.
func (h *Handler) HandleRunPlan(w http.ResponseWriter, r *http.Request) {
	client := chi.URLParam(r, "client")
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req planRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if _, err := utils.SmartParse(string(body), &req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	overrides, err := h.decodeOverrides(req.Overrides)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.orchestrator.Run(r.Context(), pipeline.Request{
		Client:       client,
		BaseYear:     req.BaseYear,
		Horizon:      req.Horizon,
		HistoryYears: req.HistoryYears,
		Scenario:     req.Scenario,
		Overrides:    overrides,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleListScenarios returns the client's saved scenarios, newest first.
func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	client := chi.URLParam(r, "client")
	scenarios, err := h.repo.ListScenarios(r.Context(), client)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if scenarios == nil {
		scenarios = []store.ScenarioSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"client": client, "scenarios": scenarios})
}

// HandleGetScenario returns one saved scenario.
func (h *Handler) HandleGetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.repo.LoadScenario(r.Context(), chi.URLParam(r, "client"), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sc)
}

// HandleSaveScenario creates or replaces a scenario.
func (h *Handler) HandleSaveScenario(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req scenarioRequest
	if _, err := utils.SmartParse(string(body), &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Horizon < 0 {
		http.Error(w, "horizon must not be negative", http.StatusBadRequest)
		return
	}
	overrides, err := h.decodeOverrides(req.Overrides)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sc := &store.Scenario{
		Client:    chi.URLParam(r, "client"),
		Name:      chi.URLParam(r, "name"),
		Overrides: overrides,
		Years:     req.Years,
		Horizon:   req.Horizon,
	}
	if err := h.repo.SaveScenario(r.Context(), sc); err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info().Str("client", sc.Client).Str("scenario", sc.Name).Msg("scenario saved")
	h.writeJSON(w, http.StatusOK, sc)
}

// HandleDeleteScenario removes a scenario.
func (h *Handler) HandleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteScenario(r.Context(), chi.URLParam(r, "client"), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetRun returns a cached run.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.orchestrator.LoadRun(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleRunReport renders a cached run. The format query parameter selects
// html (default), markdown or text.
func (h *Handler) HandleRunReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.orchestrator.LoadRun(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", report.FormatHTML:
		format = report.FormatHTML
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case report.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	case report.FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}

	var b strings.Builder
	if err := report.WritePlan(&b, result, h.orchestrator.Catalog(), format); err != nil {
		h.writeError(w, err)
		return
	}
	_, _ = io.WriteString(w, b.String())
}

func (h *Handler) decodeOverrides(raw json.RawMessage) (assumption.Overrides, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	overrides, err := assumption.DecodeOverrides(raw, h.orchestrator.Catalog())
	if err != nil {
		return nil, err
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNoHistory),
		errors.Is(err, store.ErrScenarioNotFound),
		errors.Is(err, store.ErrRunNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrValidationFailed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Msg("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

func parseYears(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}
