package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/patrimonio/internal/core"
	"github.com/JonMunkholm/patrimonio/internal/logging"
	"github.com/JonMunkholm/patrimonio/internal/web/templates"
)

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := templates.IndexData{
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
		Encoding: s.cfg.Import.Encoding,
	}

	if count, pending := s.session.PendingRestore(); pending {
		data.RestorePending = true
		data.RestoreCount = count
	} else {
		page, err := s.session.View(data.Query, parseIntParam(r, "page", 1))
		if err != nil {
			respondError(w, r, err)
			return
		}
		processed, err := s.session.Processed(parseIntParam(r, "processed", 1))
		if err != nil {
			respondError(w, r, err)
			return
		}
		data.Page = page
		data.Processed = processed
		data.Counts = s.session.Counts()

		if tombo := strings.TrimSpace(r.URL.Query().Get("tombo")); tombo != "" {
			data.Tombo = tombo
			if item, err := s.session.Lookup(tombo); err == nil {
				data.Checked = &item
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

type importResponse struct {
	Count    int    `json:"count"`
	File     string `json:"file"`
	Encoding string `json:"encoding"`
}

// handleImport replaces the session items with an uploaded CSV.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "no file provided")
		return
	}
	defer file.Close()

	enc := r.FormValue("encoding")
	if enc == "" {
		enc = s.cfg.Import.Encoding
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	logger := logging.WithFields(ctx, "file", header.Filename, "size", header.Size, "encoding", enc)
	logger.Info("import started")

	n, err := s.session.ImportReader(ctx, file, enc)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Count: n, File: header.Filename, Encoding: enc})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	page, err := s.session.View(r.URL.Query().Get("q"), parseIntParam(r, "page", 1))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.session.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	page, err := s.session.Processed(parseIntParam(r, "page", 1))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type actionRequest struct {
	Action         string   `json:"action"`
	IDs            []string `json:"ids"`
	NewResponsible string   `json:"new_responsible"`
}

type actionResponse struct {
	Action string      `json:"action"`
	Status core.Status `json:"status"`
	Items  []core.Item `json:"items"`
}

// handleAction applies an audit action. A transfer takes its new responsible
// from the request body; a missing name is reported as a cancelled prompt.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	action, err := core.ParseAction(req.Action)
	if err != nil {
		respondError(w, r, err)
		return
	}

	input := core.NoInput
	if action.NeedsInput() {
		input = core.StaticInput(req.NewResponsible)
	}

	// An explicit empty list would fall back to the server-side selection,
	// which web clients never set.
	if len(req.IDs) == 0 {
		respondError(w, r, &core.ActionError{Action: action, Reason: core.ReasonNoTargets})
		return
	}

	updated, err := s.session.Apply(r.Context(), action, req.IDs, input)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Action: string(action), Status: action.Target(), Items: updated})
}

type statsResponse struct {
	Total     int                 `json:"total"`
	Pending   int                 `json:"pending"`
	Processed int                 `json:"processed"`
	ByStatus  map[core.Status]int `json:"by_status"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	c := s.session.Counts()
	byStatus := make(map[core.Status]int, len(core.Statuses))
	for _, st := range core.Statuses {
		byStatus[st] = c.Of(st)
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Total:     c.Total,
		Pending:   c.Of(core.StatusPending),
		Processed: c.Processed(),
		ByStatus:  byStatus,
	})
}

// handleExport sends the report as a CSV attachment. It is rendered into a
// buffer first so a failure still produces a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := s.session.Export(&buf, core.SerializeOptions{
		BOM:              s.cfg.Export.BOM,
		IncludeCheckedAt: s.cfg.Export.IncludeCheckedAt,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	filename := core.ExportFileName(s.cfg.Export.FilePrefix, s.now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Error("write export", "error", err)
		return
	}
	logging.FromContext(r.Context()).Info("report exported", "file", filename, "items", n)
}

type restoreStatus struct {
	Pending bool `json:"pending"`
	Count   int  `json:"count"`
}

func (s *Server) handleRestoreStatus(w http.ResponseWriter, r *http.Request) {
	count, pending := s.session.PendingRestore()
	writeJSON(w, http.StatusOK, restoreStatus{Pending: pending, Count: count})
}

type restoreRequest struct {
	Accept bool `json:"accept"`
}

type restoreResponse struct {
	Restored bool `json:"restored"`
	Count    int  `json:"count"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	n, err := s.session.ResolveRestore(r.Context(), req.Accept)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, restoreResponse{Restored: req.Accept, Count: n})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
