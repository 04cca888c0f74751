// Package handler provides the HTTP handlers for the stub server.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/stub-server/query"
	"github.com/stevemurr/stub-server/record"
	"github.com/stevemurr/stub-server/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// Handler holds the server dependencies and registers routes.
type Handler struct {
	collections *store.Collections
	router      *mux.Router
	handler     http.Handler

	logger   *slog.Logger
	metrics  *Metrics
	gatherer prometheus.Gatherer
	origins  []string
}

// Option configures a Handler.
type Option func(*Handler)

// WithAllowedOrigins sets the CORS origins. The default, "*", allows any
// origin and echoes it back.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

// WithLogger sets the access and error logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics records request metrics in m and serves g on /metrics.
func WithMetrics(m *Metrics, g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.metrics = m
		h.gatherer = g
	}
}

// New creates a Handler and wires up all routes.
func New(c *store.Collections, opts ...Option) *Handler {
	h := &Handler{
		collections: c,
		router:      mux.NewRouter(),
		logger:      slog.Default(),
		origins:     []string{"*"},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		reg := prometheus.NewRegistry()
		h.metrics = NewMetrics(reg)
		h.gatherer = reg
	}
	h.routes()

	var next http.Handler = h.router
	next = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(h.logger.Handler(), slog.LevelError)),
	)(next)
	next = handlers.CORS(
		h.originPolicy(),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", requestIDHeader}),
		handlers.AllowCredentials(),
	)(next)
	h.handler = requestID(next)
	return h
}

// originPolicy allows the configured origins. A "*" entry allows any origin
// and echoes it back, since browsers refuse "*" on credentialed requests.
func (h *Handler) originPolicy() handlers.CORSOption {
	for _, o := range h.origins {
		if o == "*" {
			return handlers.AllowedOriginValidator(func(string) bool { return true })
		}
	}
	return handlers.AllowedOrigins(h.origins)
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.Use(h.instrument)
	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health / status
	h.router.HandleFunc("/", h.root).Methods("GET")
	h.router.HandleFunc("/health", h.health).Methods("GET")
	h.router.HandleFunc("/collections", h.listCollections).Methods("GET")
	h.router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Collection endpoints
	api := h.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/{name}", h.list).Methods("GET")
	api.HandleFunc("/{name}", h.create).Methods("POST")
	api.HandleFunc("/{name}/{id:-?[0-9]+}", h.get).Methods("GET")
	api.HandleFunc("/{name}/{id:-?[0-9]+}", h.update).Methods("PUT")
	api.HandleFunc("/{name}/{id:-?[0-9]+}", h.delete).Methods("DELETE")
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func readRecord(w http.ResponseWriter, r *http.Request) (record.Record, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return record.Record{}, err
	}
	return record.Unmarshal(data)
}

func notFoundMessage(id int64) string {
	return fmt.Sprintf("Item with Id %d is not found.", id)
}

// collection resolves the {name} route variable. On failure the response has
// been written.
func (h *Handler) collection(w http.ResponseWriter, r *http.Request) (*store.Collection, bool) {
	name := mux.Vars(r)["name"]
	c, err := h.collections.Get(name)
	switch {
	case err == nil:
		return c, true
	case errors.Is(err, store.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("collection unavailable", "collection", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
	return nil, false
}

// id parses the {id} route variable. Values outside int64 cannot name a
// record, so they are reported as not found.
func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Item with Id %s is not found.", raw))
		return 0, false
	}
	return id, true
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Stub Server",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	names, err := h.collections.Names()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// ---------- collection endpoints ----------

type listResponse struct {
	Items      []record.Record `json:"items"`
	TotalItems int             `json:"totalItems"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	res, err := c.Query(query.Params(r.URL.Query()))
	if err != nil {
		if errors.Is(err, query.ErrMalformedParameter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: res.Items, TotalItems: res.Total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	item, err := c.Find(id)
	if err != nil {
		writeError(w, http.StatusNotFound, notFoundMessage(id))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	body, err := readRecord(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c.Create(body))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	body, err := readRecord(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	saved, err := c.Update(id, body)
	if err != nil {
		writeError(w, http.StatusNotFound, notFoundMessage(id))
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	n := c.Delete(id)
	h.logger.Debug("records deleted", "collection", c.Name(), "id", id, "removed", n)
	w.WriteHeader(http.StatusOK)
}
