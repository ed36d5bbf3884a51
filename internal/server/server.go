// Package server serves protocol messages over TCP with an HTTP admin API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/lunkwill/internal/config"
	"github.com/danmuck/lunkwill/internal/observability"
	"github.com/danmuck/lunkwill/internal/protocol/handler"
	"github.com/danmuck/lunkwill/internal/protocol/message"
	"github.com/danmuck/lunkwill/internal/protocol/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Route answers one message. A nil reply sends nothing back.
type Route func(m *message.Message) (*message.Message, error)

// Echo replies with the request's arguments under the same id.
func Echo(m *message.Message) (*message.Message, error) {
	return message.New(m.ID(), m.Arguments()...), nil
}

type Server struct {
	cfg       config.ServerConfig
	validator *validator.Validator
	started   time.Time
	router    *gin.Engine

	routesMu sync.RWMutex
	routes   map[uint8]Route

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	active  atomic.Int64
}

func New(cfg config.ServerConfig) *Server {
	observability.RegisterMetrics()

	v := validator.New()
	for _, rule := range cfg.Rules {
		v.Require(rule.ID, rule.Shape())
	}

	s := &Server{
		cfg:       cfg,
		validator: v,
		started:   time.Now(),
		routes:    make(map[uint8]Route),
		conns:     make(map[net.Conn]struct{}),
	}
	for _, id := range cfg.EchoIDs {
		s.routes[id] = Echo
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, cfg.Name))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	if len(cfg.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.router = r
	s.registerRoutes()
	return s
}

// Handle installs route for message id, replacing any previous route.
func (s *Server) Handle(id uint8, route Route) {
	s.routesMu.Lock()
	s.routes[id] = route
	s.routesMu.Unlock()
}

func (s *Server) Validator() *validator.Validator {
	return s.validator
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// ActiveConnections returns the number of open client streams.
func (s *Server) ActiveConnections() int64 {
	return s.active.Load()
}

// Run listens on the configured addresses until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().Str("node", s.cfg.Name).Str("addr", ln.Addr().String()).Msg("server listening")

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		admin := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
		go func() {
			log.Info().Str("node", s.cfg.Name).Str("addr", addr).Msg("admin listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				adminErr <- err
				return
			}
			adminErr <- nil
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

// Serve accepts client streams on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.active.Add(1)
	observability.RecordConnection(s.cfg.Name, 1)
	log.Info().Str("remote", remote).Int64("active_clients", active).Msg("server.session client connected")
	defer func() {
		remaining := s.active.Add(-1)
		observability.RecordConnection(s.cfg.Name, -1)
		log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("server.session client disconnected")
	}()

	h := s.newHandler(conn)
	err := h.Consume(ctx, &meteredConn{Conn: conn, node: s.cfg.Name, timeout: s.cfg.ReadTimeout})
	switch {
	case err == nil, errors.Is(err, net.ErrClosed), ctx.Err() != nil:
	case errors.Is(err, handler.ErrBufferFull):
		observability.RecordStreamError(s.cfg.Name, "buffer_full")
		log.Warn().Str("remote", remote).Msg("server.session buffer limit exceeded")
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			observability.RecordStreamError(s.cfg.Name, "timeout")
		} else {
			observability.RecordStreamError(s.cfg.Name, "io")
		}
		log.Warn().Err(err).Str("remote", remote).Msg("server.session read failed")
	}
}

// newHandler wires a per-connection handler. Routes are looked up at
// dispatch time so Handle takes effect on open connections.
func (s *Server) newHandler(conn net.Conn) *handler.DataHandler {
	h := handler.New(s.cfg.Limits(), conn)
	h.SetValidator(s.validator)
	h.SetInvalidMessageCallback(func(_ *handler.DataHandler, m *message.Message) {
		observability.RecordMessage(s.cfg.Name, m.ID(), observability.OutcomeInvalid)
	})
	h.SetUnrecognisedMessageCallback(func(h *handler.DataHandler, m *message.Message) {
		route := s.route(m.ID())
		if route == nil {
			observability.RecordMessage(s.cfg.Name, m.ID(), observability.OutcomeUnrecognised)
			return
		}
		observability.RecordMessage(s.cfg.Name, m.ID(), observability.OutcomeHandled)
		reply, err := route(m)
		if err != nil {
			log.Warn().Err(err).Uint8("message_id", m.ID()).Msg("server.route failed")
			return
		}
		if reply == nil {
			return
		}
		if err := s.write(conn, reply); err != nil {
			log.Warn().Err(err).Uint8("message_id", reply.ID()).Msg("server.session write reply failed")
			h.Close()
		}
	})
	return h
}

func (s *Server) route(id uint8) Route {
	s.routesMu.RLock()
	defer s.routesMu.RUnlock()
	return s.routes[id]
}

func (s *Server) write(conn net.Conn, m *message.Message) error {
	buf, err := message.Encode(m)
	if err != nil {
		return err
	}
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	_, err = conn.Write(buf)
	return err
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// meteredConn refreshes the read deadline before every read and counts
// received bytes.
type meteredConn struct {
	net.Conn
	node    string
	timeout time.Duration
}

func (c *meteredConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	n, err := c.Conn.Read(p)
	if n > 0 {
		observability.RecordReceived(c.node, n)
	}
	return n, err
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
