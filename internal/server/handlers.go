package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/table"
)

// PropagateResponse is the body of POST /v1/propagate.
type PropagateResponse struct {
	RunID string           `json:"run_id"`
	Nodes []propagate.Node `json:"nodes"`
	Stats propagate.Stats  `json:"stats"`
}

// ExplainResponse is the body of POST /v1/explain.
type ExplainResponse struct {
	RunID       string                 `json:"run_id"`
	Resolutions []propagate.Resolution `json:"resolutions"`
	Stats       propagate.Stats        `json:"stats"`
}

// ValidateResponse is the body of a successful POST /v1/validate.
type ValidateResponse struct {
	Valid     bool `json:"valid"`
	Rows      int  `json:"rows"`
	Overrides int  `json:"overrides"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePropagate(w http.ResponseWriter, r *http.Request) {
	runID, res, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, PropagateResponse{
		RunID: runID,
		Nodes: res.Table.Nodes,
		Stats: res.Stats,
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	runID, res, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ExplainResponse{
		RunID:       runID,
		Resolutions: res.Resolutions,
		Stats:       res.Stats,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.decodeTable(w, r)
	if !ok {
		return
	}
	if err := propagate.Validate(t); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:     true,
		Rows:      t.Len(),
		Overrides: len(propagate.IndexOverrides(t)),
	})
}

// run decodes the request table and propagates it. It writes the error
// response itself and returns ok=false on failure.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (string, *propagate.Result, bool) {
	t, ok := s.decodeTable(w, r)
	if !ok {
		return "", nil, false
	}

	opts, err := s.requestOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return "", nil, false
	}

	runID := uuid.NewString()
	logger := s.logger.With(
		slog.String("run_id", runID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	opts = append(opts, propagate.WithLogger(logger))
	w.Header().Set("X-Run-ID", runID)

	res, err := propagate.Propagate(r.Context(), t, opts...)
	if err != nil {
		logger.Debug("propagation failed", slog.String("error", err.Error()))
		writeErr(w, err)
		return "", nil, false
	}

	logger.Info("propagated",
		slog.Int("rows", res.Stats.Rows),
		slog.Int("overrides", res.Stats.Overrides),
		slog.Int("rescaled", res.Stats.Rescaled),
	)
	return runID, res, true
}

// requestOptions reads ?workers= and ?validate= overrides.
func (s *Server) requestOptions(r *http.Request) ([]propagate.Option, error) {
	workers := s.cfg.Workers
	validate := s.cfg.Validate

	q := r.URL.Query()
	if v := q.Get("workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid workers %q", v)
		}
		workers = n
	}
	if v := q.Get("validate"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid validate %q", v)
		}
		validate = b
	}

	opts := []propagate.Option{propagate.WithWorkers(workers)}
	if !validate {
		opts = append(opts, propagate.WithoutValidation())
	}
	return opts, nil
}

// decodeTable reads the request body as a table in the format named by
// Content-Type (JSON when absent).
func (s *Server) decodeTable(w http.ResponseWriter, r *http.Request) (propagate.Table, bool) {
	format, err := formatFor(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error())
		return propagate.Table{}, false
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() { _ = body.Close() }()

	t, err := table.Read(body, format, s.cfg.Table)
	if err != nil {
		writeDecodeErr(w, err)
		return propagate.Table{}, false
	}
	return t, true
}

func formatFor(contentType string) (table.Format, error) {
	if contentType == "" {
		return table.FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("invalid Content-Type %q", contentType)
	}
	switch mediaType {
	case "application/json":
		return table.FormatJSON, nil
	case "text/csv":
		return table.FormatCSV, nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return table.FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported Content-Type %q (use application/json, text/csv or application/yaml)", mediaType)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
