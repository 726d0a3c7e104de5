package chat

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Server exposes the relay over HTTP: /chat is the room relay, /echo a
// stateless loopback endpoint for client smoke tests.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	reg      *Registry
	http     *http.Server
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		reg:    NewRegistry(cfg.EventBuffer, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/echo", s.handleEcho)
	s.http = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	go s.reg.Run()
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", "error", err)
		}
	}()

	s.logger.Info("server started", "addr", s.cfg.Addr)
	return nil
}

// Stop shuts the listener down, then drains the registry: every occupant's
// connection is closed and the map cleared.
func (s *Server) Stop() {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)

	s.reg.Stop()
	s.reg.Wait()

	s.logger.Info("shutdown complete")
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := NewConn(ws, s.cfg.SendBuffer, s.logger)
	s.logger.Info("client connected", "remote", r.RemoteAddr, "conn_id", conn.id)
	go HandleSession(conn, s.reg, s.logger)
}

// handleEcho sends every JSON frame back wrapped in {"echo": <frame>}. It
// never touches the registry.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.Close()

	for {
		var payload any
		if err := ws.ReadJSON(&payload); err != nil {
			return
		}
		if err := ws.WriteJSON(map[string]any{"echo": payload}); err != nil {
			return
		}
	}
}
