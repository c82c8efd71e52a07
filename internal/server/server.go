package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iwvelando/blend-optimizer/internal/blend"
	"github.com/iwvelando/blend-optimizer/internal/config"
	"github.com/iwvelando/blend-optimizer/pkg/constants"
)

type handler struct {
	logger        *zap.Logger
	optimizer     *blend.Optimizer
	maxUploadSize int64
	version       string
	limiter       *rate.Limiter
	metrics       *metrics
}

// NewHandler constructs the HTTP handler that serves the optimisation API.
// A nil cfg selects DefaultConfig.
func NewHandler(logger *zap.Logger, optimizer *blend.Optimizer, cfg *Config, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if optimizer == nil {
		optimizer = blend.NewOptimizer(logger, blend.DefaultParams(), nil, config.Default().SolverOptions(logger))
	}

	maxUploadSize := cfg.UploadSizeBytes()
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	h := &handler{
		logger:        logger,
		optimizer:     optimizer,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		limiter:       limiter,
		metrics:       newMetrics(),
	}

	mux := http.NewServeMux()

	// Optimisation API (JSON body)
	mux.HandleFunc("/api/optimize", h.limit(h.handleOptimize))

	// Optimisation API (mix file upload)
	mux.HandleFunc("/api/optimize/upload", h.limit(h.handleOptimizeUpload))

	mux.HandleFunc("/api/max-additions", h.limit(h.handleMaxAdditions))
	mux.HandleFunc("/api/params", h.handleParams)
	mux.HandleFunc("/api/version", h.handleVersion)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{}))

	return mux
}

// limit rejects requests above the configured rate with 429.
func (h *handler) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			h.metrics.reject("rate_limited")
			w.Header().Set("Retry-After", "1")
			h.respondErrorWithOp(w, http.StatusTooManyRequests, "rate limit exceeded", "server.limit")
			return
		}
		next(w, r)
	}
}

// optimizeRequest is the JSON body of /api/optimize. TimeLimit accepts a
// Go duration string such as "2s".
type optimizeRequest struct {
	blend.Request
	TimeLimit string `json:"time_limit,omitempty"`
}

type maxAdditionsRequest struct {
	Current blend.Composition `json:"initial_composition"`
}

type maxAdditionsResponse struct {
	MaxAdditions        blend.Composition `json:"max_additions"`
	MaxRefuelPercentage float64           `json:"max_refuel_percentage"`
}

func (h *handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimize"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var payload optimizeRequest
	if err := dec.Decode(&payload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.metrics.reject("malformed")
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return
	}

	req := payload.Request
	if payload.TimeLimit != "" {
		limit, err := time.ParseDuration(payload.TimeLimit)
		if err != nil {
			h.metrics.reject("malformed")
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid time_limit: %v", err), op)
			return
		}
		req.TimeLimit = limit
	}

	h.runOptimize(w, r, req, op)
}

func (h *handler) handleOptimizeUpload(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimizeUpload"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return
	}

	req := blend.Request{Operation: blend.Operation(r.FormValue("operation"))}

	file, _, err := r.FormFile("file")
	switch {
	case err == nil:
		defer func() {
			if closeErr := file.Close(); closeErr != nil {
				h.logger.Warn("failed to close uploaded file",
					zap.String("op", op),
					zap.Error(closeErr),
				)
			}
		}()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, file); err != nil {
			h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to read mix file: %v", err), op)
			return
		}
		mix, err := config.ParseMix(buf.Bytes())
		if err != nil {
			h.metrics.reject("malformed")
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("error reading mix file, %v", err), op)
			return
		}
		req.Current = mix
	case errors.Is(err, http.ErrMissingFile):
		// new_blend needs no mix file.
	default:
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read mix file: %v", err), op)
		return
	}

	if raw := strings.TrimSpace(r.FormValue("target")); raw != "" {
		target, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.metrics.reject("malformed")
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid target %q", raw), op)
			return
		}
		req.TargetWeight = &target
	}

	if raw := strings.TrimSpace(r.FormValue("require")); raw != "" {
		required, err := blend.ParseElements(raw)
		if err != nil {
			h.metrics.reject("invalid_input")
			h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
			return
		}
		req.Require = required
	}

	if raw := strings.TrimSpace(r.FormValue("time_limit")); raw != "" {
		limit, err := time.ParseDuration(raw)
		if err != nil {
			h.metrics.reject("malformed")
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid time_limit: %v", err), op)
			return
		}
		req.TimeLimit = limit
	}

	h.runOptimize(w, r, req, op)
}

func (h *handler) runOptimize(w http.ResponseWriter, r *http.Request, req blend.Request, op string) {
	start := time.Now()

	res, err := h.optimizer.Optimize(r.Context(), req)
	if err != nil {
		if errors.Is(err, blend.ErrInvalidInput) {
			h.metrics.reject("invalid_input")
			h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("optimisation failed: %v", err), op)
		return
	}

	elapsed := time.Since(start)
	h.metrics.observe(res, elapsed)

	h.logger.Info("optimisation request served",
		zap.String("op", op),
		zap.String("operation", string(res.Operation)),
		zap.Stringer("status", res.Status),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) handleMaxAdditions(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleMaxAdditions"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var payload maxAdditionsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.metrics.reject("malformed")
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return
	}

	current, err := blend.ValidateComposition(payload.Current)
	if err != nil {
		h.metrics.reject("invalid_input")
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	h.writeJSON(w, http.StatusOK, maxAdditionsResponse{
		MaxAdditions:        h.optimizer.MaxAdditions(current),
		MaxRefuelPercentage: h.optimizer.Params().MaxRefuelPercentage(),
	})
}

func (h *handler) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, h.optimizer.Params().Spec())
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	level := h.logger.Error
	if status < http.StatusInternalServerError {
		level = h.logger.Warn
	}
	level("optimisation request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
