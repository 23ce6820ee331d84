package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/kartoza/antiox-predictor/internal/config"
	"github.com/kartoza/antiox-predictor/internal/form"
	"github.com/kartoza/antiox-predictor/internal/history"
	"github.com/kartoza/antiox-predictor/internal/models"
	"github.com/kartoza/antiox-predictor/internal/predict"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// Service is the prediction service as seen by the API
type Service interface {
	form.Predictor
	Health(ctx context.Context) (models.HealthResponse, error)
	Endpoint() string
}

// Handler provides HTTP API endpoints
type Handler struct {
	service  Service
	store    *history.Store
	recorder form.Recorder
	cfg      config.Config
	logger   *zap.Logger
}

// NewHandler creates a new API handler. store and recorder may be nil.
func NewHandler(
	service Service,
	store *history.Store,
	recorder form.Recorder,
	cfg config.Config,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:  service,
		store:    store,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Form
	r.HandleFunc("/preview", h.handlePreview).Methods("GET")
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")

	// History
	r.HandleFunc("/history", h.handleListHistory).Methods("GET")
	r.HandleFunc("/history", h.handleClearHistory).Methods("DELETE")
	r.HandleFunc("/history/{id}", h.handleGetHistory).Methods("GET")
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Error encoding response", zap.Error(err))
	}
}

// respondError sends a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information, including a probe of the prediction service
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":        h.cfg.Version,
		"endpoint":       h.service.Endpoint(),
		"history_loaded": h.store != nil,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if health, err := h.service.Health(ctx); err != nil {
		info["service"] = map[string]interface{}{"reachable": false, "error": err.Error()}
	} else {
		info["service"] = map[string]interface{}{
			"reachable":    true,
			"status":       health.Status,
			"model_loaded": health.ModelLoaded,
		}
	}

	h.respondJSON(w, http.StatusOK, info)
}

// handlePreview returns the colour swatch for r, g, b query parameters
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	swatch := predict.Preview(q.Get("r"), q.Get("g"), q.Get("b"))
	h.respondJSON(w, http.StatusOK, models.SwatchView{
		CSS:   swatch.CSS,
		Label: swatch.Label,
		Color: swatch.Color,
	})
}

// handlePredict validates the body and runs it through the form controller
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	wire, err := decodePredictRequest(body)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := responseView{}
	opts := []form.Option{form.WithLogger(h.logger)}
	if h.recorder != nil {
		opts = append(opts, form.WithRecorder(h.recorder))
	}
	ctrl := form.NewController(h.service, view, opts...)

	req := predict.RequestFromWire(wire)
	result, err := ctrl.Submit(r.Context(), req)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, models.PredictionView{
		Prediction: result.Value,
		Display:    result.Display(),
		Input:      wire,
	})
}

// statusFor maps controller errors onto HTTP statuses
func statusFor(err error) int {
	var verr *predict.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	var rerr *predict.RequestError
	if errors.As(err, &rerr) {
		if rerr.Transport() {
			return http.StatusBadGateway
		}
		if rerr.StatusCode >= 400 && rerr.StatusCode < 500 {
			return rerr.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// historyEntry is the JSON shape of a history entry
type historyEntry struct {
	ID         string                `json:"id"`
	CreatedAt  time.Time             `json:"createdAt"`
	Input      models.PredictRequest `json:"input"`
	Prediction float64               `json:"prediction"`
	Display    string                `json:"display"`
	Color      string                `json:"color"`
}

func toHistoryEntry(e history.Entry) historyEntry {
	swatch := predict.PreviewValues(e.Request.R, e.Request.G, e.Request.B)
	return historyEntry{
		ID:         e.ID,
		CreatedAt:  e.CreatedAt,
		Input:      e.Request.Wire(),
		Prediction: e.Prediction,
		Display:    e.Display(),
		Color:      swatch.Hex(),
	}
}

// handleListHistory returns recent predictions
func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondJSON(w, http.StatusOK, []historyEntry{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list history", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryEntry(e))
	}
	h.respondJSON(w, http.StatusOK, out)
}

// handleGetHistory returns a single prediction
func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusNotFound, "history disabled")
		return
	}

	entry, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, toHistoryEntry(entry))
}

// handleClearHistory deletes all stored predictions
func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondJSON(w, http.StatusOK, map[string]int64{"removed": 0})
		return
	}

	n, err := h.store.Clear(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("History cleared", zap.Int64("removed", n))
	h.respondJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

// responseView satisfies form.View for the JSON API. The controller's return
// values carry everything the response needs, so rendering is a no-op.
type responseView struct{}

func (responseView) Inputs() predict.Inputs { return predict.Inputs{} }
func (responseView) RenderPreview(predict.Swatch) {}
func (responseView) RenderResult(predict.Request, predict.Result) {}
func (responseView) RenderError(error) {}
func (responseView) SetLoading(bool) {}
