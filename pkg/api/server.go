// MotoLink Core
// Copyright (c) 2026 The MotoLink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of MotoLink Core.
//
// MotoLink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// MotoLink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with MotoLink Core.  If not, see <http://www.gnu.org/licenses/>.


// Package api serves the JSON-RPC 2.0 API over WebSocket and HTTP POST
// and pushes service notifications to every WebSocket client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/api/methods"
	"github.com/motolink/motolink-core/pkg/api/middleware"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/api/models/requests"
	"github.com/motolink/motolink-core/pkg/api/validation"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/datalog"
	"github.com/motolink/motolink-core/pkg/helpers/syncutil"
	"github.com/motolink/motolink-core/pkg/service/state"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
)

const (
	// APIPath serves WebSocket upgrades on GET and single requests on POST.
	APIPath = "/api/v1"

	maxRequestSize  = 1 << 16
	shutdownTimeout = 5 * time.Second
)

var (
	JSONRPCErrorParseError     = models.ErrorObject{Code: -32700, Message: "Parse error"}
	JSONRPCErrorInvalidRequest = models.ErrorObject{Code: -32600, Message: "Invalid Request"}
	JSONRPCErrorMethodNotFound = models.ErrorObject{Code: -32601, Message: "Method not found"}
	JSONRPCErrorInvalidParams  = models.ErrorObject{Code: -32602, Message: "Invalid params"}
	JSONRPCErrorInternalError  = models.ErrorObject{Code: -32603, Message: "Internal error"}
	JSONRPCErrorServerError    = models.ErrorObject{Code: -32000, Message: "Server error"}
)

var ErrMethodExists = errors.New("method already registered")

type MethodHandler func(requests.RequestEnv) (any, error)

// MethodMap is the registry of JSON-RPC methods. Names are lower case.
type MethodMap struct {
	methods map[string]MethodHandler
	mu      syncutil.RWMutex
}

// NewMethodMap returns a map with every built-in method registered.
func NewMethodMap() *MethodMap {
	return &MethodMap{methods: map[string]MethodHandler{
		// session
		models.MethodSession:           methods.HandleSession,
		models.MethodSessionConnect:    methods.HandleSessionConnect,
		models.MethodSessionDisconnect: methods.HandleSessionDisconnect,
		models.MethodSessionCommand:    methods.HandleSessionCommand,
		// readings
		models.MethodReadingsLatest: methods.HandleReadingsLatest,
		models.MethodReadingsTest:   methods.HandleReadingsTest,
		models.MethodFields:         methods.HandleFields,
		// data log
		models.MethodDataLog:      methods.HandleDataLog,
		models.MethodDataLogStart: methods.HandleDataLogStart,
		models.MethodDataLogStop:  methods.HandleDataLogStop,
		// utils
		models.MethodVersion: methods.HandleVersion,
	}}
}

func (m *MethodMap) AddMethod(name string, fn MethodHandler) error {
	name = strings.ToLower(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[name]; ok {
		return fmt.Errorf("%w: %s", ErrMethodExists, name)
	}
	m.methods[name] = fn
	return nil
}

func (m *MethodMap) GetMethod(name string) (MethodHandler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.methods[strings.ToLower(name)]
	return fn, ok
}

// ListMethods returns the registered method names, sorted.
func (m *MethodMap) ListMethods() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type Options struct {
	Config  *config.Instance
	State   *state.State
	Session requests.Session
	DataLog *datalog.Sink
	Methods *MethodMap
	Clock   clockwork.Clock
}

// Server is the API server. Build one with NewServer and run it with
// Serve.
type Server struct {
	cfg      *config.Instance
	st       *state.State
	session  requests.Session
	dataLog  *datalog.Sink
	methods  *MethodMap
	melody   *melody.Melody
	limiter  *middleware.IPRateLimiter
	ipFilter *middleware.IPFilter
	baseCtx  context.Context //nolint:containedctx // server lifetime for WebSocket requests
}

//nolint:gocritic // options struct passed once at startup
func NewServer(opts Options) *Server {
	methodMap := opts.Methods
	if methodMap == nil {
		methodMap = NewMethodMap()
	}
	s := &Server{
		cfg:      opts.Config,
		st:       opts.State,
		session:  opts.Session,
		dataLog:  opts.DataLog,
		methods:  methodMap,
		limiter:  middleware.NewIPRateLimiter(opts.Clock),
		ipFilter: middleware.NewIPFilter(opts.Config.AllowedIPs()),
		baseCtx:  context.Background(),
	}

	m := melody.New()
	m.Config.MaxMessageSize = maxRequestSize
	m.Upgrader.CheckOrigin = s.checkOrigin
	m.HandleConnect(func(session *melody.Session) {
		log.Debug().Str("addr", session.Request.RemoteAddr).Msg("websocket client connected")
	})
	m.HandleDisconnect(func(session *melody.Session) {
		log.Debug().Str("addr", session.Request.RemoteAddr).Msg("websocket client disconnected")
	})
	m.HandleError(func(session *melody.Session, err error) {
		log.Debug().Err(err).Str("addr", session.Request.RemoteAddr).Msg("websocket error")
	})
	m.HandleMessage(middleware.WebSocketRateLimitHandler(s.limiter, s.handleWSMessage))
	s.melody = m

	return s
}

func (s *Server) allowedOrigins() []string {
	origins := s.cfg.AllowedOrigins()
	if len(origins) == 0 {
		return []string{"https://*", "http://*", "capacitor://*"}
	}
	return origins
}

// checkOrigin applies the CORS origin list to WebSocket upgrades. Clients
// that send no Origin header, such as the CLI, are allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins() {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
		if prefix, suffix, ok := strings.Cut(allowed, "*"); ok &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	log.Warn().Str("origin", origin).Msg("websocket origin not allowed")
	return false
}

// Handler returns the HTTP routes of the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(middleware.HTTPIPFilterMiddleware(s.ipFilter))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.HTTPRateLimitMiddleware(s.limiter))
		r.Get(APIPath, func(w http.ResponseWriter, r *http.Request) {
			if err := s.melody.HandleRequest(w, r); err != nil {
				log.Error().Err(err).Msg("handling websocket request")
			}
		})
		r.With(chimiddleware.Timeout(config.APIRequestTimeout)).Post(APIPath, s.handlePost)
	})

	return r
}

func (s *Server) handleWSMessage(session *melody.Session, msg []byte) {
	// heartbeat
	if bytes.Equal(msg, []byte("ping")) {
		if err := session.Write([]byte("pong")); err != nil {
			log.Error().Err(err).Msg("sending pong")
		}
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, config.APIRequestTimeout)
	defer cancel()

	resp := s.processRequest(ctx, session.Request.RemoteAddr, msg)
	if resp == nil {
		return
	}
	if err := session.Write(resp); err != nil {
		log.Error().Err(err).Msg("error sending response")
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil ||
		mediaType != "application/json" {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestSize {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	resp := s.processRequest(r.Context(), r.RemoteAddr, body)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// JSON-RPC errors travel in the body with a 200
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Error().Err(err).Msg("error writing response")
	}
}

// processRequest runs one JSON-RPC message and returns the encoded
// response, or nil when no response is due.
func (s *Server) processRequest(ctx context.Context, remoteAddr string, msg []byte) []byte {
	if !json.Valid(msg) {
		log.Debug().Msg("request is not valid json")
		return encodeError(models.RPCID{}, JSONRPCErrorParseError)
	}

	var req models.RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		log.Debug().Err(err).Msg("request does not match the request object")
		return encodeError(models.RPCID{}, JSONRPCErrorInvalidRequest)
	}

	var id models.RPCID
	if req.ID != nil {
		id = *req.ID
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		log.Debug().Str("jsonrpc", req.JSONRPC).Str("method", req.Method).Msg("invalid request")
		return encodeError(id, JSONRPCErrorInvalidRequest)
	}

	if req.ID.IsAbsent() {
		log.Debug().Str("method", req.Method).Msg("received notification, ignoring")
		return nil
	}

	fn, ok := s.methods.GetMethod(req.Method)
	if !ok {
		log.Debug().Str("method", req.Method).Msg("unknown method")
		return encodeError(id, JSONRPCErrorMethodNotFound)
	}

	log.Debug().Str("method", req.Method).Str("id", id.String()).Msg("received request")
	result, err := fn(requests.RequestEnv{
		Context: ctx,
		Session: s.session,
		Config:  s.cfg,
		State:   s.st,
		DataLog: s.dataLog,
		Params:  req.Params,
		ID:      id,
		IsLocal: middleware.IsLoopbackAddr(remoteAddr),
	})
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Msg("request failed")
		return encodeError(id, errorObject(err))
	}

	data, err := json.Marshal(models.ResponseObject{JSONRPC: "2.0", ID: id, Result: result})
	if err != nil {
		log.Error().Err(err).Msg("error marshalling response")
		return encodeError(id, JSONRPCErrorInternalError)
	}
	return data
}

// errorObject maps a handler error to a JSON-RPC error. Parameter problems
// are invalid params; everything else is a server error tagged with its
// kind.
func errorObject(err error) models.ErrorObject {
	var verr *validation.Error
	if errors.As(err, &verr) ||
		errors.Is(err, validation.ErrMissingParams) ||
		errors.Is(err, validation.ErrInvalidParams) {
		return models.ErrorObject{Code: JSONRPCErrorInvalidParams.Code, Message: err.Error()}
	}
	return models.ErrorObject{
		Code:    JSONRPCErrorServerError.Code,
		Message: err.Error(),
		Data:    &models.ErrorData{Kind: state.ErrorKind(err)},
	}
}

func encodeError(id models.RPCID, errObj models.ErrorObject) []byte {
	data, err := json.Marshal(models.ResponseErrorObject{JSONRPC: "2.0", ID: id, Error: &errObj})
	if err != nil {
		log.Error().Err(err).Msg("error marshalling error response")
		return nil
	}
	return data
}

// broadcastNotifications pushes every notification to all WebSocket
// clients until ctx ends or the channel closes. Melody queues per client,
// so a slow client cannot stall the loop.
func (s *Server) broadcastNotifications(ctx context.Context, notifications <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(models.NotificationObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
				Params:  notif.Params,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.melody.Broadcast(data); err != nil && !errors.Is(err, melody.ErrClosed) {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// Serve runs the API on ln until ctx ends, then closes every WebSocket
// and shuts the HTTP server down.
func (s *Server) Serve(ctx context.Context, ln net.Listener, notifications <-chan models.Notification) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.broadcastNotifications(ctx, notifications)
	s.limiter.StartCleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("address", ln.Addr().String()).Msg("api server listening")

	select {
	case <-ctx.Done():
		if err := s.melody.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
			log.Warn().Err(err).Msg("closing websocket sessions")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown: %w", err)
		}
		log.Info().Msg("api server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	}
}

// Listen opens the configured API address. It is separate from Serve so
// callers know the port is bound before anything advertises it.
func Listen(ctx context.Context, cfg *config.Instance) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.APIListen())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.APIListen(), err)
	}
	return ln, nil
}
