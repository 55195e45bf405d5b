package main

import (
	"encoding/json"
	"net/http"

	"bersona/internal/config"
	"bersona/internal/structuring"
)

type apiServer struct {
	engine *structuring.Engine
	cfg    *config.Config
}

func newServer(engine *structuring.Engine, cfg *config.Config) *apiServer {
	return &apiServer{engine: engine, cfg: cfg}
}

// options merges the request overrides with the configured defaults.
func (s *apiServer) options(req requestOptions) structuring.Options {
	opts := structuring.DefaultOptions()
	opts.Model = s.cfg.Model
	opts.FallbackModels = s.cfg.FallbackModels
	if req.Model != "" {
		opts.Model = req.Model
	}
	if req.UseCache != nil {
		opts.UseCache = *req.UseCache
	}
	if req.MaxRetries != nil {
		opts.MaxRetries = *req.MaxRetries
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.RedactInputs != nil {
		opts.RedactInputs = *req.RedactInputs
	}
	return opts
}

type requestOptions struct {
	Model        string   `json:"model,omitempty"`
	UseCache     *bool    `json:"use_cache,omitempty"`
	MaxRetries   *int     `json:"max_retries,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	RedactInputs *bool    `json:"redact_inputs,omitempty"`
}

type structureRequest struct {
	requestOptions
	Symbols map[string]any `json:"symbols"`
}

type structureBatchRequest struct {
	requestOptions
	Items      []map[string]any `json:"items"`
	Parallel   bool             `json:"parallel,omitempty"`
	MaxWorkers int              `json:"max_workers,omitempty"`
	Dedupe     *bool            `json:"dedupe,omitempty"`
}

func (s *apiServer) handleStructure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req structureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Symbols == nil {
		http.Error(w, "symbols is required", http.StatusBadRequest)
		return
	}
	rec := s.engine.Structure(r.Context(), req.Symbols, s.options(req.requestOptions))
	writeJSON(w, rec)
}

func (s *apiServer) handleStructureBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req structureBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items is required", http.StatusBadRequest)
		return
	}

	opts := structuring.BatchOptions{
		Options:    s.options(req.requestOptions),
		Parallel:   req.Parallel,
		MaxWorkers: req.MaxWorkers,
		Dedupe:     true,
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if req.Dedupe != nil {
		opts.Dedupe = *req.Dedupe
	}

	recs := s.engine.StructureBatch(r.Context(), req.Items, opts)
	writeJSON(w, map[string]any{"results": recs})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.engine.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
