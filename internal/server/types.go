// Package server exposes QR detection over HTTP and WebSocket.
package server

import (
	"context"
	"image"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inchinet/qrscanner/internal/decode"
	"github.com/inchinet/qrscanner/internal/detect"
)

// detector is the orchestration seam the handlers run requests through.
type detector interface {
	Run(ctx context.Context, src image.Image) (detect.Outcome, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	strategies    []detect.Strategy
	prepassScales []float64
	corsOrigin    string
	maxUploadMB   int64
	timeoutSec    int

	// newDetector builds a per-request detector. The gozxing readers keep
	// decode hints as internal state, so concurrent requests must not share
	// one decoder instance.
	newDetector func(progress detect.ProgressCallback) (detector, error)
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	CORSOrigin   string
	MaxUploadMB  int64
	TimeoutSec   int
	DetectConfig detect.Config
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// DetectResponse is the detection outcome payload.
type DetectResponse struct {
	Status          string  `json:"status"` // "success" or "not_found"
	Text            string  `json:"text,omitempty"`
	Strategy        string  `json:"strategy,omitempty"`
	StrategyIndex   int     `json:"strategy_index,omitempty"`
	PrepassScale    float64 `json:"prepass_scale,omitempty"`
	StrategiesTried int     `json:"strategies_tried"`
	Error           string  `json:"error,omitempty"`
}

// StrategyInfo describes one strategy for the /strategies listing.
type StrategyInfo struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Scale   float64 `json:"scale"`
	Filters string  `json:"filters"`
	Engine  string  `json:"engine"`
}

// StrategiesResponse is the /strategies payload.
type StrategiesResponse struct {
	Strategies    []StrategyInfo `json:"strategies"`
	PrepassScales []float64      `json:"prepass_scales,omitempty"`
	Count         int            `json:"count"`
}

// NewServer creates a new detection server instance.
func NewServer(config Config) (*Server, error) {
	cfg := config.DetectConfig
	if cfg.Strategies == nil {
		cfg.Strategies = detect.DefaultStrategies()
	}
	if cfg.PrepassScales == nil && !cfg.DisablePrepass {
		cfg.PrepassScales = detect.DefaultPrepassScales()
	}

	// Validate the detect configuration up front so requests cannot fail on
	// a bad server config.
	if _, err := detect.New(cfg, decode.NewGoZXing()); err != nil {
		return nil, err
	}

	maxUploadMB := config.MaxUploadMB
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	corsOrigin := config.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}

	return &Server{
		strategies:    cfg.Strategies,
		prepassScales: cfg.PrepassScales,
		corsOrigin:    corsOrigin,
		maxUploadMB:   maxUploadMB,
		timeoutSec:    config.TimeoutSec,
		newDetector: func(progress detect.ProgressCallback) (detector, error) {
			perRequest := cfg
			perRequest.Progress = progress
			return detect.New(perRequest, decode.NewGoZXing())
		},
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/strategies", s.corsMiddleware(s.strategiesHandler))
	mux.HandleFunc("/detect/image", s.corsMiddleware(s.detectImageHandler))
	mux.HandleFunc("/ws/scan", s.scanWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
