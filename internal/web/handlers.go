package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/memberimport/internal/core"
	"github.com/JonMunkholm/memberimport/internal/logging"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of the file cap for form fields and boundaries.
const multipartOverhead = 1 << 20

var errNoFile = errors.New("no file provided")

// SessionResponse is returned by the endpoints that create or inspect a session.
type SessionResponse struct {
	SessionID string               `json:"sessionId"`
	Snapshot  core.SessionSnapshot `json:"session"`
}

// ResultResponse is the body of the result endpoint.
type ResultResponse struct {
	SessionID string             `json:"sessionId"`
	Status    core.ImportPhase   `json:"status"`
	Result    *core.ImportResult `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Code      string             `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.LimiterStatus()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"activeImports": status.Active,
		"sessions":      s.service.SessionCount(),
	})
}

// handleTemplate serves the static import template as a CSV download.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.TemplateFileName))
	_, _ = io.WriteString(w, core.TemplateCSV())
}

// handlePreview creates a session and parses the uploaded file without importing.
// The client starts the import later with POST /{id}/start.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, snap, err := s.createAndLoad(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusCreated, SessionResponse{SessionID: id, Snapshot: snap})
}

// handleImport creates a session, parses the file and starts importing it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id, _, err := s.createAndLoad(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	// The caller never learned this session's ID, so a failed start must
	// not leave it behind.
	if err := s.start(w, r, id); err != nil {
		_ = s.service.DeleteSession(id)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	_ = s.start(w, r, chi.URLParam(r, "id"))
}

// start launches the import and writes the response. The returned error has
// already been reported to the client.
func (s *Server) start(w http.ResponseWriter, r *http.Request, id string) error {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.StartImport(ctx, id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return err
	}

	logging.WithSession(r.Context(), id).Info("import started")
	w.Header().Set("Location", "/api/imports/"+id+"/result")
	writeJSON(w, r, http.StatusAccepted, map[string]string{
		"sessionId": id,
		"progress":  "/api/imports/" + id + "/progress",
		"result":    "/api/imports/" + id + "/result",
	})
	return nil
}

// createAndLoad reads the multipart upload, opens a session with the posted
// settings and parses the file into it. A session whose file fails to parse
// is discarded.
func (s *Server) createAndLoad(w http.ResponseWriter, r *http.Request) (string, core.SessionSnapshot, error) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", core.SessionSnapshot{}, fmt.Errorf("file too large: %w", err)
		}
		return "", core.SessionSnapshot{}, fmt.Errorf("%w: %v", errNoFile, err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	settings, err := parseSettings(r.MultipartForm, s.defaults)
	if err != nil {
		return "", core.SessionSnapshot{}, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", core.SessionSnapshot{}, errNoFile
	}
	defer file.Close()

	id, err := s.service.CreateSession(settings)
	if err != nil {
		return "", core.SessionSnapshot{}, err
	}

	snap, err := s.service.LoadFile(r.Context(), id, header.Filename, file)
	if err != nil {
		_ = s.service.DeleteSession(id)
		return "", core.SessionSnapshot{}, err
	}

	logging.WithSession(r.Context(), id).Info("member file uploaded",
		"file", header.Filename,
		"size", header.Size,
		"rows", snap.TotalRows,
		"valid_rows", snap.ValidRows,
	)
	return id, snap, nil
}

// parseSettings overlays posted form values on defaults.
// Checkbox values "on" and "true" both count as set.
func parseSettings(form *multipart.Form, defaults core.ImportSettings) (core.ImportSettings, error) {
	settings := defaults
	if form == nil {
		return settings, settings.Validate()
	}

	get := func(key string) (string, bool) {
		v, ok := form.Value[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return strings.TrimSpace(v[0]), true
	}

	if v, ok := get("defaultTier"); ok && v != "" {
		t, known := core.ParseTier(v)
		if !known {
			return settings, fmt.Errorf("invalid import settings: unknown tier %q", v)
		}
		settings.DefaultTier = t
	}
	if v, ok := get("defaultPoints"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return settings, fmt.Errorf("invalid import settings: defaultPoints %q is not a whole number", v)
		}
		settings.DefaultPoints = n
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"sendWelcomeEmails", &settings.SendWelcomeEmails},
		{"skipDuplicates", &settings.SkipDuplicates},
		{"updateExisting", &settings.UpdateExisting},
	}
	for _, f := range flags {
		v, ok := get(f.key)
		if !ok {
			continue
		}
		if v == "on" {
			*f.dst = true
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return settings, fmt.Errorf("invalid import settings: %s %q is not a boolean", f.key, v)
		}
		*f.dst = b
	}

	return settings, settings.Validate()
}

// handleProgress streams progress as Server-Sent Events until the run ends
// or the client disconnects.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	progressCh, err := s.service.SubscribeProgress(id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(progress)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Processed, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleResult returns the session's result. With ?wait=true it blocks
// until a running import finishes; otherwise a running import yields 202.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.service.Snapshot(id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if snap.Running && !wait {
		writeJSON(w, r, http.StatusAccepted, map[string]any{
			"sessionId": id,
			"status":    snap.Progress.Phase,
			"progress":  snap.Progress,
		})
		return
	}

	result, runErr := s.service.Result(r.Context(), id)
	if result == nil {
		if runErr == nil {
			runErr = core.ErrImportNotStarted
		}
		s.respondError(w, r, runErr, statusFor(runErr))
		return
	}

	// Re-read for the final phase after waiting.
	if snap, err = s.service.Snapshot(id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	resp := ResultResponse{SessionID: id, Status: snap.Progress.Phase, Result: result}
	if runErr != nil {
		msg := core.MapError(runErr)
		resp.Error = msg.Message
		resp.Code = msg.Code
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ResultSummary(id, resp.Status, result).Render(r.Context(), w); err != nil {
			logging.WithSession(r.Context(), id).Error("render result", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleErrorsCSV downloads the failed rows of a finished import.
func (s *Server) handleErrorsCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.service.Snapshot(id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if snap.Running {
		s.respondError(w, r, core.ErrSessionBusy, http.StatusConflict)
		return
	}
	if snap.Result == nil {
		s.respondError(w, r, core.ErrImportNotStarted, http.StatusConflict)
		return
	}

	data, err := core.ErrorsCSV(snap.Result)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import_errors_%s.csv"`, id))
	_, _ = w.Write(data)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.service.Snapshot(id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, SessionResponse{SessionID: id, Snapshot: snap})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.CancelImport(id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.WithSession(r.Context(), id).Info("import cancel requested")
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleReset clears the session and applies freshly posted settings.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(multipartOverhead); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.respondError(w, r, fmt.Errorf("invalid import settings: %w", err), http.StatusBadRequest)
		return
	}
	settings, err := parseSettings(r.MultipartForm, s.defaults)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if err := s.service.ResetSession(id, settings); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	snap, err := s.service.Snapshot(id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, SessionResponse{SessionID: id, Snapshot: snap})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.DeleteSession(id); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory lists recent import runs.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = HistoryTable(runs).Render(r.Context(), w)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}

// parseIntParam parses a positive integer query parameter with a default value.
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

// clientIP returns the host part of r.RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
