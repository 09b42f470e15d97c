// Package server exposes the battle protocol over a websocket endpoint mounted
// in a gin router.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"showdown-arena/arena"
	"showdown-arena/auth"
)

type Server struct {
	hub      *Hub
	orch     *arena.Orchestrator
	verifier auth.Verifier
	log      *slog.Logger
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

func New(hub *Hub, orch *arena.Orchestrator, verifier auth.Verifier, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		hub:      hub,
		orch:     orch,
		verifier: verifier,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin; access is gated by the bearer token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": s.hub.Len()})
	})
	r.GET("/battle", s.handleBattle)
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
		)
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (s *Server) handleBattle(c *gin.Context) {
	identity, err := s.verifier.Verify(c.Request.Context(), bearerToken(c.Request))
	if err != nil {
		s.log.Info("rejected connection", "remote", c.ClientIP(), "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	cn := newConn(uuid.NewString(), ws, s.log)
	s.hub.add(cn)
	s.orch.Connect(cn.id, identity)
	defer func() {
		s.hub.remove(cn.id)
		cn.close()
		s.orch.Disconnect(context.Background(), cn.id)
	}()

	// Hijacked connections outlive the request context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = cn.run(ctx, s.orch, s.hub)
}
