// Package httpapi exposes a constdb.Engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/andreyvit/constdb"
)

const (
	maxBodySize     = 16 << 20
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	engine  *constdb.Engine
	logger  *slog.Logger
	metrics *metrics.Set
	mux     *http.ServeMux
}

func New(engine *constdb.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		logger:  logger,
		metrics: metrics.NewSet(),
		mux:     http.NewServeMux(),
	}

	s.handle("GET /{$}", s.handleHello)

	s.handle("GET /api/v1/dbs", s.handleListDatabases)
	s.handle("POST /api/v1/dbs", s.handleCreateDatabase)
	s.handle("DELETE /api/v1/dbs/{db}", s.handleDropDatabase)

	s.handle("GET /api/v1/dbs/{db}/tables", s.handleListTables)
	s.handle("POST /api/v1/dbs/{db}/tables", s.handleCreateTable)
	s.handle("DELETE /api/v1/dbs/{db}/tables/{table}", s.handleDeleteTable)

	s.handle("GET /api/v1/dbs/{db}/tables/{table}/data", s.handleQuery)
	s.handle("POST /api/v1/dbs/{db}/tables/{table}/data", s.handleInsert)
	s.handle("PUT /api/v1/dbs/{db}/tables/{table}/data", s.handleUpdate)
	s.handle("DELETE /api/v1/dbs/{db}/tables/{table}/data", s.handleDelete)

	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	return s
}

// Metrics returns the set request metrics are registered in.
func (s *Server) Metrics() *metrics.Set {
	return s.metrics
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(sctx)
	}()

	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
	err := srv.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "Hello, ConstDB!")
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

type createDatabaseInput struct {
	Name string `json:"name"`
}

type createTableOutput struct {
	Name string `json:"name"`
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.ListDatabases())
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var in createDatabaseInput
	if !s.readJSON(w, r, &in) {
		return
	}
	db, err := s.engine.CreateDatabase(in.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, db)
}

func (s *Server) handleDropDatabase(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DropDatabase(r.PathValue("db")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.engine.ListTables(r.PathValue("db"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var settings constdb.TableSettings
	if !s.readJSON(w, r, &settings) {
		return
	}
	name, err := s.engine.CreateTable(r.PathValue("db"), settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createTableOutput{Name: name})
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteTable(r.PathValue("db"), r.PathValue("table")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	data, err := s.engine.QueryByKey(r.PathValue("db"), r.PathValue("table"), queryParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := s.engine.Insert(r.PathValue("db"), r.PathValue("table"), body); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := s.engine.Update(r.PathValue("db"), r.PathValue("table"), body, queryParams(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.PathValue("db"), r.PathValue("table"), queryParams(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// queryParams keeps the first value of every query parameter.
func queryParams(r *http.Request) map[string]string {
	q := r.URL.Query()
	params := make(map[string]string, len(q))
	for k, vv := range q {
		if len(vv) > 0 {
			params[k] = vv[0]
		}
	}
	return params
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
		}
		return nil, false
	}
	return body, true
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("cannot encode response", "err", err)
		http.Error(w, "serialization failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	http.Error(w, err.Error(), status)
}

// StatusOf maps an engine error to an HTTP status code.
func StatusOf(err error) int {
	switch constdb.KindOf(err) {
	case 0:
		return http.StatusOK
	case constdb.KindAlreadyExists, constdb.KindInvalidArgument:
		return http.StatusBadRequest
	case constdb.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
