package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/inchinet/qrscanner/internal/detect"
	"github.com/inchinet/qrscanner/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// strategiesHandler lists the configured detection strategies.
func (s *Server) strategiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := make([]StrategyInfo, len(s.strategies))
	for i, strat := range s.strategies {
		infos[i] = StrategyInfo{
			Index:   i + 1,
			Name:    strat.Name,
			Scale:   strat.Scale,
			Filters: strat.Filters.String(),
			Engine:  strat.Engine.String(),
		}
	}

	response := StrategiesResponse{
		Strategies:    infos,
		PrepassScales: s.prepassScales,
		Count:         len(infos),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode strategies response", "error", err)
	}
}

// detectImageHandler runs the strategy orchestration over an uploaded image.
func (s *Server) detectImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	uploadSizeBytes.Observe(float64(len(imageData)))

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	outcome, err := s.runDetection(ctx, img, detect.NoOpProgress{})
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return
	}

	recordOutcomeMetrics(outcome, duration)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(outcomeResponse(outcome)); err != nil {
		slog.Error("Failed to encode detection response", "error", err)
	}
}

func (s *Server) runDetection(ctx context.Context, img image.Image, progress detect.ProgressCallback) (detect.Outcome, error) {
	det, err := s.newDetector(progress)
	if err != nil {
		return detect.Outcome{}, err
	}
	return det.Run(ctx, img)
}

// outcomeResponse maps a detection outcome to the wire representation.
func outcomeResponse(outcome detect.Outcome) DetectResponse {
	resp := DetectResponse{
		Status:          "not_found",
		StrategiesTried: outcome.StrategiesTried,
	}
	if outcome.Found {
		resp.Status = "success"
		resp.Text = outcome.Text
		resp.Strategy = outcome.Strategy
		resp.StrategyIndex = outcome.StrategyIndex
		resp.PrepassScale = outcome.PrepassScale
	}
	return resp
}

func recordOutcomeMetrics(outcome detect.Outcome, duration time.Duration) {
	if outcome.Found {
		detectRequestsTotal.WithLabelValues("success").Inc()
		detectWinningStrategy.Observe(float64(outcome.StrategyIndex))
	} else {
		detectRequestsTotal.WithLabelValues("not_found").Inc()
	}
	detectDuration.Observe(duration.Seconds())
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := DetectResponse{
		Status: "error",
		Error:  message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
