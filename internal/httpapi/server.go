// Package httpapi is the embedded HTTP surface (§4.11): webhook
// ingestion endpoints plus, when a Control is wired, the control API.
// It listens on loopback only and is built on the teacher's declared
// HTTP stack (go-chi/chi, go-chi/cors, go-chi/httplog) rather than the
// bare net/http mux the teacher's own (much older) internal/admin
// package used — the chi-based shape is what the rest of the pack
// settled on for exactly this "small JSON API behind middleware" case.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/module"
	"github.com/orgloop/orgloop/internal/orgevent"
	"github.com/orgloop/orgloop/internal/plugin"
)

// Injector hands a webhook-produced event to the runtime for
// processing through one (or, with moduleName == "", every active)
// module.
type Injector func(ctx context.Context, event orgevent.Event, moduleName string) error

// Control is implemented by the runtime to back the control API.
// Defining it here (rather than importing internal/runtime) avoids a
// dependency cycle: the runtime imports httpapi to start the server.
type Control interface {
	Status() any
	ModuleList() []module.Status
	ModuleStatus(name string) (module.Status, bool)
	ModuleLoad(ctx context.Context, cfg config.Module) (module.Status, error)
	ModuleUnload(ctx context.Context, name string) error
	ModuleReload(ctx context.Context, name string) (module.Status, error)
	Shutdown(ctx context.Context) error
}

type webhookReg struct {
	moduleName string
	handler    plugin.WebhookHandler
}

// Server is the loopback HTTP surface. It is constructed once by the
// runtime and started lazily the first time a webhook source is
// loaded, or eagerly via Start.
type Server struct {
	mu       sync.RWMutex
	webhooks map[string]webhookReg

	addr     string
	injector Injector
	control  Control

	router     chi.Router
	httpServer *http.Server
	started    bool
}

// New returns a Server bound to addr (host:port), not yet listening.
func New(addr string, injector Injector, control Control) *Server {
	s := &Server{
		addr:     addr,
		injector: injector,
		control:  control,
		webhooks: make(map[string]webhookReg),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	logger := httplog.NewLogger("orgloop", httplog.Options{JSON: true, LogLevel: 0})
	r.Use(httplog.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}}))

	r.Post("/webhook/{sourceID}", s.handleWebhook)

	if s.control != nil {
		r.Get("/control/status", s.handleControlStatus)
		r.Get("/control/module/list", s.handleModuleList)
		r.Get("/control/module/status/{name}", s.handleModuleStatus)
		r.Post("/control/module/load", s.handleModuleLoad)
		r.Post("/control/module/unload", s.handleModuleUnload)
		r.Post("/control/module/reload", s.handleModuleReload)
		r.Post("/control/shutdown", s.handleShutdown)
	}
	return r
}

// RegisterWebhook wires sourceID's handler in, replacing any existing
// registration for the same id.
func (s *Server) RegisterWebhook(sourceID, moduleName string, handler plugin.WebhookHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[sourceID] = webhookReg{moduleName: moduleName, handler: handler}
}

// RemoveWebhooksForModule drops every webhook registration belonging to
// moduleName, used on unload.
func (s *Server) RemoveWebhooksForModule(moduleName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, reg := range s.webhooks {
		if reg.moduleName == moduleName {
			delete(s.webhooks, id)
		}
	}
}

// HasWebhooks reports whether any source's webhook is currently
// registered, used by the runtime to decide whether the server needs
// to be running at all.
func (s *Server) HasWebhooks() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.webhooks) > 0
}

// Start begins listening in the background. Calling Start twice is a
// no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.router}
	ln, err := listen(s.addr)
	if err != nil {
		return err
	}
	s.started = true
	go func() {
		_ = s.httpServer.Serve(ln)
	}()
	return nil
}

// Shutdown gracefully stops the server if running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.httpServer == nil {
		return nil
	}
	s.started = false
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	s.mu.RLock()
	reg, ok := s.webhooks[sourceID]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	wr := plugin.WebhookRequest{Method: r.Method, Path: r.URL.Path, Headers: r.Header, Body: body}
	events, err := reg.handler(r.Context(), wr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, ev := range events {
		if err := s.injector(r.Context(), ev, reg.moduleName); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "events": len(events)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
