// Package gateway serves the metrics resolver over XML-RPC.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	stdlog "log"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/cloudbox/sysgate"
	"github.com/cloudbox/sysgate/auth"
	"github.com/cloudbox/sysgate/resolver"
	"github.com/cloudbox/sysgate/stats"
	"github.com/cloudbox/sysgate/xmlrpc"
)

const (
	// RPCPath is the only path answering XML-RPC calls.
	RPCPath = "/RPC2"

	maxBodySize = 1 << 20

	metricsNamespace = "sysgate"
)

// Resolver turns method names into callable reads.
type Resolver interface {
	Resolve(name string) (resolver.Method, error)
	Methods() []string
	Help(name string) (string, error)
}

type Config struct {
	Resolver Resolver
	Gate     *auth.Gate
	Stats    *stats.Stats

	Verbosity string
}

type Server struct {
	resolver Resolver
	gate     *auth.Gate
	stats    *stats.Stats
	registry *prometheus.Registry
	system   map[string]systemMethod
	log      zerolog.Logger

	srv   *http.Server
	ready atomic.Bool
}

func New(c Config) *Server {
	st := c.Stats
	if st == nil {
		st = stats.New()
	}

	gate := c.Gate
	if gate == nil {
		gate = auth.New(auth.Config{Stats: st})
	}

	s := &Server{
		resolver: c.Resolver,
		gate:     gate,
		stats:    st,
		registry: prometheus.NewRegistry(),
		log:      sysgate.GetLogger("gateway", c.Verbosity),
	}
	s.system = s.systemMethods()

	s.registry.MustRegister(
		stats.NewCollector(metricsNamespace, st),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	//nolint:gosec // connections live as long as the client keeps them open
	s.srv = &http.Server{
		Handler:  s.Router(),
		ErrorLog: stdlog.New(s.log, "", 0),
	}

	return s
}

// Router returns the gateway routes wrapped in their middleware.
func (s *Server) Router() chi.Router {
	mux := chi.NewRouter()

	mux.Use(middleware.Recoverer)

	// request logger in context, no access log
	mux.Use(hlog.NewHandler(s.log))
	mux.Use(hlog.RequestIDHandler("id", "request-id"))

	// browsers may call the gateway from any origin
	mux.Use(middleware.SetHeader("Access-Control-Allow-Origin", "*"))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", s.healthHandler)
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mux.With(s.gate.Middleware).Post(RPCPath, s.rpcHandler)

	return mux
}

func (s *Server) rpcHandler(rw http.ResponseWriter, r *http.Request) {
	s.stats.Calls.Add(1)

	body := http.MaxBytesReader(rw, r.Body, maxBodySize)
	result, fault := s.dispatch(r.Context(), body)

	var buf bytes.Buffer
	if fault == nil {
		if err := xmlrpc.EncodeResponse(&buf, result); err != nil {
			fault = &xmlrpc.Fault{Code: xmlrpc.CodeApplication, Message: err.Error()}
		}
	}

	if fault != nil {
		s.stats.Faults.Add(1)
		buf.Reset()
		if err := xmlrpc.EncodeFault(&buf, fault); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("Fault Encode Failed")
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	rw.Header().Set("Content-Type", "text/xml")
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write(buf.Bytes())
}

// dispatch decodes and runs one call. Every failure is returned as a fault so
// the connection stays usable.
func (s *Server) dispatch(ctx context.Context, body io.Reader) (any, *xmlrpc.Fault) {
	call, err := xmlrpc.DecodeCall(body)
	if err != nil {
		return nil, &xmlrpc.Fault{Code: xmlrpc.CodeParseError, Message: err.Error()}
	}

	rlog := zerolog.Ctx(ctx).With().Str("method", call.Method).Logger()

	if fn, ok := s.system[call.Method]; ok {
		result, err := fn(call.Params)
		if err != nil {
			return nil, faultFor(err)
		}
		return result, nil
	}

	method, err := s.resolver.Resolve(call.Method)
	if err != nil {
		rlog.Trace().Err(err).Msg("Method Not Resolved")
		return nil, faultFor(err)
	}

	if len(call.Params) > 0 {
		return nil, faultFor(errInvalidParams(call.Method, 0, len(call.Params)))
	}

	payload, err := method(ctx)
	if err != nil {
		rlog.Debug().Err(err).Msg("Method Failed")
		return nil, faultFor(err)
	}

	return payload, nil
}

func faultFor(err error) *xmlrpc.Fault {
	code := xmlrpc.CodeApplication
	switch {
	case errors.Is(err, sysgate.ErrMethodNotFound):
		code = xmlrpc.CodeMethodNotFound
	case errors.Is(err, sysgate.ErrInvalidParams):
		code = xmlrpc.CodeInvalidParams
	}

	return &xmlrpc.Fault{Code: code, Message: err.Error()}
}

func (s *Server) healthHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	if s.ready.Load() {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(`{"status":"ready"}`))
	} else {
		rw.WriteHeader(http.StatusServiceUnavailable)
		_, _ = rw.Write([]byte(`{"status":"initializing"}`))
	}
}
