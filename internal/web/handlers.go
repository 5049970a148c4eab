package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/dedup"
	"github.com/JonMunkholm/sheetload/internal/logging"
	"github.com/JonMunkholm/sheetload/internal/matcher"
	"github.com/JonMunkholm/sheetload/internal/pipeline"
	"github.com/JonMunkholm/sheetload/internal/source"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to disk.
const multipartMemory = 32 << 20

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if p, ok := s.catalog.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("health check ping failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"runs":   s.limiter.Status(),
	})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.catalog.ListSchemas(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": schemas})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema")
	tables, err := s.catalog.ListTables(r.Context(), schema)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": schema, "tables": tables})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	schema, table := chi.URLParam(r, "schema"), chi.URLParam(r, "table")

	cached := "MISS"
	if s.columns.Contains(cacheKey(schema, table)) {
		cached = "HIT"
	}
	cols, err := s.cached().GetColumns(r.Context(), schema, table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("X-Cache", cached)
	writeJSON(w, http.StatusOK, map[string]any{"schema": schema, "table": table, "columns": cols})
}

func (s *Server) handleIdentifier(w http.ResponseWriter, r *http.Request) {
	schema, table := chi.URLParam(r, "schema"), chi.URLParam(r, "table")

	candidates, err := s.resolver.Candidates(r.Context(), schema, table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	body := map[string]any{
		"schema":     schema,
		"table":      table,
		"identifier": nil,
		"candidates": candidates,
	}
	if len(candidates) > 0 {
		body["identifier"] = candidates[0]
	} else {
		body["warning"] = fmt.Sprintf("%v for %s.%s", core.ErrNoIdentifier, schema, table)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.handleRun(w, r, false)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	s.handleRun(w, r, true)
}

// handleRun reads the uploaded sheet and runs it through the pipeline,
// holding a run slot for the whole request.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, insert bool) {
	ctx := r.Context()
	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	req, err := s.parseRun(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req.Insert = insert

	p := pipeline.New(s.cached(), s.sources, s.opts)
	if insert {
		res := p.Run(ctx, req)
		s.respondRun(w, r, res, res)
		return
	}
	pr := p.Preview(ctx, req)
	s.respondRun(w, r, pr.Result, pr)
}

// parseRun turns a multipart upload into a pipeline request. The form
// carries the file plus optional sheet, row_limit, keep and strategy fields.
func (s *Server) parseRun(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	req := pipeline.Request{
		Schema: chi.URLParam(r, "schema"),
		Table:  chi.URLParam(r, "table"),
	}

	maxSize := s.cfg.Source.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, fmt.Errorf("%w: upload exceeds %d bytes", source.ErrFileTooLarge, maxSize)
		}
		return req, badRequest("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, badRequest("no file provided")
	}
	defer file.Close()

	if v := r.FormValue("row_limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, badRequest("row_limit must be a non-negative integer")
		}
		req.RowLimit = n
	}
	if v := r.FormValue("keep"); v != "" {
		keep, err := dedup.ParseKeepPolicy(v)
		if err != nil {
			return req, badRequest(err.Error())
		}
		req.Keep = keep
	}
	if v := r.FormValue("strategy"); v != "" {
		strategy, err := matcher.ParseStrategy(v)
		if err != nil {
			return req, badRequest(err.Error())
		}
		req.Strategy = strategy
	}
	if r.MultipartForm != nil && len(r.MultipartForm.Value["map"]) > 0 {
		fixed, err := parseMappings(r.MultipartForm.Value["map"])
		if err != nil {
			return req, err
		}
		req.Mappings = fixed
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return req, fmt.Errorf("read sheet: %w", err)
	}
	if int64(len(data)) > maxSize {
		return req, fmt.Errorf("%w: %s exceeds %d bytes", source.ErrFileTooLarge, header.Filename, maxSize)
	}

	req.Path = header.Filename
	req.Sheet = r.FormValue("sheet")
	req.Data, err = s.sources.Read(r.Context(), source.BytesFile(header.Filename, data), req.Sheet, req.RowLimit)
	if err != nil {
		return req, err
	}
	return req, nil
}

// runFailure is the body of a failed run: the error fields plus whatever
// the run produced before it stopped.
type runFailure struct {
	ErrorResponse
	Result any `json:"result"`
}

func (s *Server) respondRun(w http.ResponseWriter, r *http.Request, res *pipeline.Result, body any) {
	if res.Success {
		writeJSON(w, http.StatusOK, body)
		return
	}

	msg := "run failed"
	if len(res.Errors) > 0 {
		msg = res.Errors[0]
	}
	e := errorResponse(errors.New(msg))
	status := statusFor(e.Code)

	logging.FromContext(r.Context()).Warn("run failed",
		"run_id", res.RunID,
		"status", status,
		"code", e.Code,
		"errors", res.Errors,
	)
	writeJSON(w, status, runFailure{ErrorResponse: e, Result: body})
}

func (s *Server) cached() core.Catalog {
	return withColumnCache(s.catalog, s.columns)
}

// parseMappings reads "Source=Destination" pairs. Each form value may hold
// several pairs separated by commas.
func parseMappings(values []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if strings.TrimSpace(item) == "" {
				continue
			}
			src, dst, ok := strings.Cut(item, "=")
			src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
			if !ok || src == "" || dst == "" {
				return nil, badRequest(fmt.Sprintf("map entry %q must look like Source=Destination", item))
			}
			out[src] = dst
		}
	}
	return out, nil
}
