package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ridge/must/v2"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/provider"
	"github.com/ridge/repoindex/tlog"
	"go.uber.org/zap"
)

// Indexes is the part of provider.Provider the admin interface reads
type Indexes interface {
	Definitions() []indices.Definition
	Workspaces() []string
	Indexes(workspace string) []*provider.ManagedIndex
	Index(workspace, name string) (*provider.ManagedIndex, bool)
	LastSuccessfulUpdate() time.Time
}

// Config is the configuration of the admin interface
type Config struct {
	Indexes Indexes

	// Gatherer provides /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// IndexInfo describes a managed index
type IndexInfo struct {
	Name               string             `json:"name"`
	Workspace          string             `json:"workspace"`
	Definition         indices.Definition `json:"definition"`
	Entries            int64              `json:"entries"`
	RequiresReindexing bool               `json:"requiresReindexing"`
}

// Checkpoint is the body of /checkpoint
type Checkpoint struct {
	LastSuccessfulUpdate time.Time `json:"lastSuccessfulUpdate"`
}

type handler struct {
	indexes Indexes
}

func newHandler(config Config) http.Handler {
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	h := handler{indexes: config.Indexes}

	r := mux.NewRouter()
	r.HandleFunc("/definitions", h.definitions).Methods(http.MethodGet)
	r.HandleFunc("/checkpoint", h.checkpoint).Methods(http.MethodGet)
	r.HandleFunc("/indexes", h.list).Methods(http.MethodGet)
	r.HandleFunc("/indexes/{workspace}", h.list).Methods(http.MethodGet)
	r.HandleFunc("/indexes/{workspace}/{name}", h.index).Methods(http.MethodGet)
	r.HandleFunc("/indexes/{workspace}/{name}/export", h.export).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return logRequests(handlers.CompressHandler(recoverPanics(r)))
}

func (h handler) definitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.indexes.Definitions())
}

func (h handler) checkpoint(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Checkpoint{LastSuccessfulUpdate: h.indexes.LastSuccessfulUpdate()})
}

func (h handler) list(w http.ResponseWriter, r *http.Request) {
	workspaces := h.indexes.Workspaces()
	if ws, ok := mux.Vars(r)["workspace"]; ok {
		workspaces = []string{ws}
	}
	res := []IndexInfo{}
	for _, ws := range workspaces {
		for _, m := range h.indexes.Indexes(ws) {
			info, err := describe(ws, m)
			if err != nil {
				writeError(w, r, err)
				return
			}
			res = append(res, info)
		}
	}
	writeJSON(w, res)
}

func (h handler) index(w http.ResponseWriter, r *http.Request) {
	m, ws, ok := h.lookup(w, r)
	if !ok {
		return
	}
	info, err := describe(ws, m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, info)
}

func (h handler) export(w http.ResponseWriter, r *http.Request) {
	m, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if err := m.Export(w); err != nil {
		// headers are gone with the first block
		tlog.Get(r.Context()).Error("Export failed", zap.String("index", m.Name()), zap.Error(err))
	}
}

func (h handler) lookup(w http.ResponseWriter, r *http.Request) (*provider.ManagedIndex, string, bool) {
	vars := mux.Vars(r)
	m, ok := h.indexes.Index(vars["workspace"], vars["name"])
	if !ok {
		http.Error(w, "no such index", http.StatusNotFound)
		return nil, "", false
	}
	return m, vars["workspace"], true
}

func describe(workspace string, m *provider.ManagedIndex) (IndexInfo, error) {
	entries, err := m.EstimateTotalCount()
	if err != nil {
		return IndexInfo{}, err
	}
	def := m.Definition()
	return IndexInfo{
		Name:               def.Name,
		Workspace:          workspace,
		Definition:         def,
		Entries:            entries,
		RequiresReindexing: m.RequiresReindexing(),
	}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	must.OK(json.NewEncoder(w).Encode(v))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	tlog.Get(r.Context()).Error("Request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := must.OK1(zap.NewStdLogAt(tlog.Get(r.Context()), zap.ErrorLevel))
		handlers.RecoveryHandler(handlers.RecoveryLogger(logger), handlers.PrintRecoveryStack(true))(next).ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tlog.With(r.Context(),
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
		)
		logger := tlog.Get(ctx)
		logger.Debug("HTTP request handling started")
		m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))
		logger.Debug("HTTP request handling ended", zap.Int("statusCode", m.Code),
			zap.Duration("elapsed", m.Duration), zap.Int64("written", m.Written))
	})
}
