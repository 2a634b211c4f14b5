package rasterimport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
)

// RemoteImporter implements output.RasterImporter against a collaborator
// service that ingests rasters and runs WMS requests on our behalf.
type RemoteImporter struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewRemoteImporter creates an importer talking to endpoint.
func NewRemoteImporter(endpoint string, timeout time.Duration, logger *slog.Logger) *RemoteImporter {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &RemoteImporter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "remote_importer"),
	}
}

type importResponse struct {
	Ref   string `json:"ref"`
	Error string `json:"error"`
}

// ImportRaster implements output.RasterImporter. The raster travels as
// a multipart upload with its metadata alongside.
func (r *RemoteImporter) ImportRaster(ctx context.Context, result domain.MosaicResult, prov domain.Provenance, outputName string) (string, error) {
	f, err := os.Open(result.Path)
	if err != nil {
		return "", &domain.ImportError{Target: r.endpoint, Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	meta := struct {
		Output     string                 `json:"output"`
		SRID       int                    `json:"srid"`
		Georef     domain.AffineTransform `json:"georef"`
		Provenance domain.Provenance      `json:"provenance"`
	}{outputName, result.SRID, result.Georef, prov}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", &domain.ImportError{Target: r.endpoint, Err: err}
	}
	if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
		return "", &domain.ImportError{Target: r.endpoint, Err: err}
	}

	part, err := mw.CreateFormFile("raster", filepath.Base(result.Path))
	if err != nil {
		return "", &domain.ImportError{Target: r.endpoint, Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", &domain.ImportError{Target: r.endpoint, Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &domain.ImportError{Target: r.endpoint, Err: err}
	}

	ref, err := r.post(ctx, r.endpoint+"/rasters", mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	r.logger.Info("raster handed to remote importer", "output", outputName, "ref", ref)
	return ref, nil
}

// ImportWMS implements output.RasterImporter.
func (r *RemoteImporter) ImportWMS(ctx context.Context, req output.WMSRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", &domain.ImportError{Target: r.endpoint, Err: err}
	}

	ref, err := r.post(ctx, r.endpoint+"/wms", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	r.logger.Info("wms extent handed to remote importer", "output", req.Output, "ref", ref)
	return ref, nil
}

func (r *RemoteImporter) post(ctx context.Context, url, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", &domain.ImportError{Target: url, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &domain.ImportError{Target: url, Err: err}
	}
	defer resp.Body.Close()

	var parsed importResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil && resp.StatusCode == http.StatusOK {
		return "", &domain.ImportError{Target: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = resp.Status
		}
		return "", &domain.ImportError{Target: url, Err: fmt.Errorf("importer rejected request: %s", msg)}
	}
	return parsed.Ref, nil
}
