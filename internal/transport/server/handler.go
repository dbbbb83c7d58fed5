// Package server exposes a transport over HTTP and provides the matching
// client transport.
//
// Routes:
//
//	GET  /objects/{id}    object bytes, 404 when missing
//	HEAD /objects/{id}    200 or 404
//	PUT  /objects/{id}    store the body; the body must hash to id
//	POST /objects         store a batch: {"objects": {id: object, ...}}
//	POST /objects/batch   read a batch: {"ids": [...]} -> {"objects": {...}}
//	GET  /metrics         Prometheus metrics
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/metrics"
	"github.com/roach88/objsync/internal/transport"
)

// MaxObjectBytes bounds a single request body.
const MaxObjectBytes = 64 << 20

type batchGetRequest struct {
	IDs []string `json:"ids"`
}

type objectsBody struct {
	Objects map[string]json.RawMessage `json:"objects"`
}

type server struct {
	tr     transport.Transport
	logger *slog.Logger
}

// NewHandler serves tr over HTTP.
func NewHandler(tr transport.Transport, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{tr: tr, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)

	r.Get("/objects/{id}", s.get)
	r.Head("/objects/{id}", s.head)
	r.Put("/objects/{id}", s.put)
	r.Post("/objects", s.putBatch)
	r.Post("/objects/batch", s.getBatch)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ServerRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, transport.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Error("object request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	data, err := s.tr.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *server) head(w http.ResponseWriter, r *http.Request) {
	ok, err := s.tr.Has(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// verify checks that data decodes to an object with the given id.
func verify(id string, data []byte) error {
	o, err := ir.DecodeObject(data)
	if err != nil {
		return err
	}
	if o.ID != id {
		return fmt.Errorf("%w: path id %s, body id %s", ir.ErrIDMismatch, id, o.ID)
	}
	return nil
}

func (s *server) put(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxObjectBytes))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := verify(id, data); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.tr.Put(r.Context(), id, data); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) putBatch(w http.ResponseWriter, r *http.Request) {
	var body objectsBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxObjectBytes)).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	items := make([]transport.Item, 0, len(body.Objects))
	for id, raw := range body.Objects {
		if err := verify(id, raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		items = append(items, transport.Item{ID: id, Data: raw})
	}
	if err := transport.PutAll(r.Context(), s.tr, items); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) getBatch(w http.ResponseWriter, r *http.Request) {
	var req batchGetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxObjectBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	found, err := transport.GetAll(r.Context(), s.tr, req.IDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := objectsBody{Objects: make(map[string]json.RawMessage, len(found))}
	for id, data := range found {
		resp.Objects[id] = data
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		s.logger.Error("encode batch response", "error", err)
	}
}
