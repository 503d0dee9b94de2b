package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jobrunner/geofix/internal/application"
	"github.com/jobrunner/geofix/internal/domain"
)

// actionResponse is the JSON form of an action result.
type actionResponse struct {
	domain.Result
	DurationMS int64 `json:"duration_ms"`
}

// handleListActions returns the invocable actions.
func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	actions := s.actions.Actions()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"actions": actions,
		"count":   len(actions),
	})
}

// handleInvokeAction runs an action with the JSON object body as arguments.
func (s *Server) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	name := pathVar(r, "name")

	args, err := decodeArgs(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.actions.Invoke(r.Context(), name, args)

	s.writeJSON(w, statusForResult(result), actionResponse{
		Result:     result,
		DurationMS: result.Duration.Milliseconds(),
	})
}

// decodeArgs reads a flat JSON object. Scalars are converted to strings,
// nulls are dropped and an empty body means no arguments.
func decodeArgs(body io.Reader) (map[string]string, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	args := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			args[k] = val
		case json.Number:
			args[k] = val.String()
		case bool:
			args[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("argument %q must be a string, number or boolean", k)
		}
	}
	return args, nil
}

// statusForResult maps a result to an HTTP status code.
func statusForResult(r domain.Result) int {
	if r.OK() {
		return http.StatusOK
	}
	switch r.Kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnsupported, domain.KindTransform, domain.KindRead:
		return http.StatusUnprocessableEntity
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleListDatasets returns all catalogued datasets.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.catalog.ListDatasets(r.Context())
	if err != nil {
		s.logger.Error("failed to list datasets", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list datasets")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// handleGetDataset returns one dataset by name or workspace path.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	info, err := s.catalog.GetDataset(r.Context(), pathVar(r, "name"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Dataset not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to get dataset")
		return
	}

	s.writeJSON(w, http.StatusOK, info)
}

// handleGetFile serves a workspace file, typically a produced output.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolve(w, pathVar(r, "path"))
	if !ok {
		return
	}

	f, err := os.Open(path) //#nosec G304 -- path is confined to the workspace
	if err != nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}

	if ct := contentType(path); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// handlePutFile stores an uploaded dataset file, or shapefile sidecar, in
// the workspace and catalogs the dataset.
func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request) {
	rel := pathVar(r, "path")
	if !isUploadable(rel) {
		s.writeError(w, http.StatusUnsupportedMediaType,
			"Only .geojson, .json, .zip, .shp and shapefile sidecar files can be uploaded")
		return
	}

	path, ok := s.resolve(w, rel)
	if !ok {
		return
	}

	body := r.Body
	if s.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)
	}

	if err := writeAtomic(path, body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		s.logger.Error("failed to store upload", "path", rel, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	response := map[string]interface{}{"path": s.workspace.Rel(path)}

	datasetPath := path
	if !domain.IsDatasetFile(path) {
		datasetPath = strings.TrimSuffix(path, filepath.Ext(path)) + ".shp"
	}
	if _, err := os.Stat(datasetPath); err == nil {
		info, err := s.catalog.Register(r.Context(), datasetPath)
		if err != nil {
			s.logger.Warn("failed to catalog upload", "path", rel, "error", err)
		} else {
			response["dataset"] = info
		}
	}

	s.writeJSON(w, http.StatusCreated, response)
}

// pathVar returns an unescaped route variable.
func pathVar(r *http.Request, name string) string {
	v := mux.Vars(r)[name]
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// resolve confines a request path to the workspace, writing the error
// response if it cannot be.
func (s *Server) resolve(w http.ResponseWriter, rel string) (string, bool) {
	path, err := s.workspace.Resolve(rel)
	if err != nil {
		if errors.Is(err, domain.ErrPathOutsideWorkspace) {
			s.writeError(w, http.StatusForbidden, "Path outside workspace")
			return "", false
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return path, true
}

var sidecarExtensions = map[string]bool{".dbf": true, ".shx": true, ".prj": true, ".cpg": true}

func isUploadable(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return domain.IsDatasetFile(path) || sidecarExtensions[strings.ToLower(filepath.Ext(path))]
}

// writeAtomic writes r to a hidden temporary file next to path and renames
// it into place, so watchers never see a partial dataset.
func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case domain.ExtGeoJSON, domain.ExtJSON:
		return "application/geo+json"
	case ".zip":
		return "application/zip"
	}
	return ""
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":            boolToStatus(details.Healthy),
		"ready":             details.Ready,
		"datasets_known":    details.DatasetsKnown,
		"datasets_readable": details.DatasetsReadable,
		"components":        details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
