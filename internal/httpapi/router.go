package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/taskforcehq/taskforce-forecast/internal/api"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

const maxBodyBytes = 64 << 10

// Options configures the HTTP router.
type Options struct {
	Logger         *slog.Logger
	Service        api.Forecaster
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the dashboard-facing HTTP API.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{logger: logger, service: opts.Service}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)
		}
		r.Post("/forecast", h.forecast)
		r.Get("/dataset/status", h.datasetStatus)
	})
	return r
}

type handler struct {
	logger  *slog.Logger
	service api.Forecaster
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *handler) forecast(w http.ResponseWriter, r *http.Request) {
	var fields api.ForecastRequestFields
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fields); err != nil {
		h.respond(w, r, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error(), Code: "BAD_REQUEST"})
		return
	}
	req, err := fields.ToDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.service.Forecast(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, api.ForecastPayload(result))
}

func (h *handler) datasetStatus(w http.ResponseWriter, r *http.Request) {
	fresh, err := h.service.DatasetStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, api.FreshnessPayload(fresh))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	pops := []string{}
	for _, p := range h.service.Populations() {
		pops = append(pops, string(p))
	}
	h.respond(w, r, http.StatusOK, map[string]any{"status": "ok", "populations": pops})
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case utils.IsConfiguration(err):
		h.respond(w, r, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "CONFIGURATION_ERROR"})
	case utils.IsContractViolation(err):
		h.respond(w, r, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "CONTRACT_VIOLATION"})
	case errors.Is(err, context.DeadlineExceeded):
		h.respond(w, r, http.StatusGatewayTimeout, errorBody{Error: "upstream timeout", Code: "TIMEOUT"})
	default:
		h.logger.Error("request failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.Any("error", err),
		)
		h.respond(w, r, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
	}
}

// respond writes v as JSON and logs payloads that cannot be encoded.
func (h *handler) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.Error("encode response",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.Any("error", err),
		)
	}
}

// writeJSON encodes v before writing the header. Encoding failures are
// answered with a 500 and returned to the caller.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"response could not be encoded","code":"INTERNAL"}` + "\n"))
		return err
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
	return nil
}
