package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/geoforge/basemap/internal/domain"
)

// defaultJobListLimit bounds GET /jobs when no limit is given.
const defaultJobListLimit = 50

// jobRequest is the POST /jobs payload.
type jobRequest struct {
	Output     string    `json:"output"`
	Server     string    `json:"server,omitempty"`
	URL        string    `json:"url,omitempty"`
	BBox       []float64 `json:"bbox"` // [minX, minY, maxX, maxY]
	SourceSRID int       `json:"sourceSrid,omitempty"`
	OutputSRID int       `json:"outputSrid,omitempty"`
	Resolution float64   `json:"resolution"`
	Format     string    `json:"format,omitempty"`
	MaxCols    int       `json:"maxCols,omitempty"`
	MaxRows    int       `json:"maxRows,omitempty"`
	Layers     string    `json:"layers,omitempty"`
}

// toSpec converts the request payload into a domain spec. Payload shape
// errors surface here; semantic validation happens in the pipeline.
func (req *jobRequest) toSpec() (domain.FetchSpec, error) {
	if len(req.BBox) != 4 {
		return domain.FetchSpec{}, errors.New("bbox must have exactly four values: [minX, minY, maxX, maxY]")
	}

	format := domain.FormatPNG
	if req.Format != "" {
		parsed, err := domain.ParseImageFormat(req.Format)
		if err != nil {
			return domain.FetchSpec{}, err
		}
		format = parsed
	}

	return domain.FetchSpec{
		Output:     req.Output,
		ServerID:   req.Server,
		CustomURL:  req.URL,
		BBox:       domain.NewBoundingBox(req.BBox[0], req.BBox[1], req.BBox[2], req.BBox[3], req.SourceSRID),
		SourceSRID: req.SourceSRID,
		OutputSRID: req.OutputSRID,
		Resolution: req.Resolution,
		Format:     format,
		MaxCols:    req.MaxCols,
		MaxRows:    req.MaxRows,
		WMSLayers:  req.Layers,
	}, nil
}

// handleSubmitJob queues a new basemap job.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	spec, err := req.toSpec()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.jobs.Submit(r.Context(), spec)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, s.formatJob(job))
}

// handleListJobs returns recent jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = v
	}

	jobs, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	response := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		response[i] = s.formatJob(job)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  response,
		"count": len(response),
	})
}

// handleGetJob returns a specific job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["jobId"]

	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.formatJob(job))
}

// handleListServers returns the tile server catalog.
func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	servers := s.catalog.List()

	response := make([]map[string]interface{}, len(servers))
	for i, srv := range servers {
		response[i] = formatServer(srv)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"servers": response,
		"count":   len(response),
	})
}

// handleGetServer returns a specific catalog entry.
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serverID := vars["serverId"]

	srv, err := s.catalog.Get(serverID)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedServer) {
			s.writeError(w, http.StatusNotFound, "Server not found")
			return
		}
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatServer(srv))
}

// handleHealth returns overall service health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.Details(r.Context())

	status := http.StatusOK
	if details.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, details)
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
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// formatJob shapes a job for the API surface.
func (s *Server) formatJob(job *domain.Job) map[string]interface{} {
	out := map[string]interface{}{
		"id":           job.ID,
		"status":       string(job.Status),
		"output":       job.Spec.Output,
		"totalTiles":   job.TotalTiles,
		"fetchedTiles": job.FetchedTiles,
		"failedTiles":  job.FailedTiles,
		"createdAt":    job.CreatedAt.Format(time.RFC3339),
	}

	if job.Spec.ServerID != "" {
		out["server"] = job.Spec.ServerID
	}
	if job.ImportRef != "" {
		out["importRef"] = job.ImportRef
	}
	if job.Error != "" {
		out["error"] = job.Error
	}
	if job.StartedAt != nil {
		out["startedAt"] = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		out["completedAt"] = job.CompletedAt.Format(time.RFC3339)
	}

	if res := job.Result; res != nil {
		out["result"] = map[string]interface{}{
			"width":     res.Width,
			"height":    res.Height,
			"tileCount": res.TileCount,
			"zoom":      res.Zoom,
			"format":    string(res.Format),
			"srid":      res.SRID,
			"coverage":  res.Coverage,
			"resampled": res.Resampled,
			"extent": map[string]float64{
				"minX": res.Extent.MinX,
				"minY": res.Extent.MinY,
				"maxX": res.Extent.MaxX,
				"maxY": res.Extent.MaxY,
			},
		}
	}

	return out
}

// formatServer shapes a catalog entry for the API surface.
func formatServer(srv domain.ServerDescriptor) map[string]interface{} {
	return map[string]interface{}{
		"id":      srv.ID,
		"name":    srv.DisplayName,
		"url":     srv.URLTemplate,
		"scheme":  string(srv.Scheme),
		"maxZoom": srv.MaxZoom,
		"format":  string(srv.Format),
	}
}

// handleServiceError maps domain errors to HTTP status codes.
func (s *Server) handleServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) || errors.Is(err, domain.ErrInvalidInput) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errors.Is(err, domain.ErrUnsupportedServer) || errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if errors.Is(err, domain.ErrUnsupportedCRS) || errors.Is(err, domain.ErrUnsupported) {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if errors.Is(err, domain.ErrUnavailable) {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.logger.Error("request failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, "Internal server error")
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
