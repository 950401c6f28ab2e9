package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sniper-core/internal/engine"
	"sniper-core/internal/events"
	"sniper-core/internal/monitor"
	"sniper-core/internal/risk"
	"sniper-core/pkg/db"
	"sniper-core/pkg/ledger"
)

// Server wires the HTTP admin/observability surface around the core.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Gate      *risk.Gate
	Exec      *engine.Executor
	Pending   *monitor.PendingSet
	Client    ledger.Client
	JWTSecret string

	adminHash []byte
}

// NewServer builds the router. adminPassword empty disables the admin login.
func NewServer(bus *events.Bus, database *db.Database, gate *risk.Gate, exec *engine.Executor, pending *monitor.PendingSet, client ledger.Client, jwtSecret, adminPassword string) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Gate:      gate,
		Exec:      exec,
		Pending:   pending,
		Client:    client,
		JWTSecret: jwtSecret,
	}
	if adminPassword != "" {
		hash, err := hashPassword(adminPassword)
		if err != nil {
			log.Printf("api: hash admin password: %v", err)
		} else {
			s.adminHash = hash
		}
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/risk/limits", s.getLimits)
			protected.PUT("/risk/limits", s.updateLimits)
			protected.POST("/risk/volumes/reset", s.resetVolumes)

			protected.GET("/blacklist", s.getBlacklist)
			protected.POST("/blacklist", s.addBlacklist)
			protected.DELETE("/blacklist/:token", s.removeBlacklist)

			protected.GET("/pending", s.getPending)
			protected.GET("/transactions", s.getTransactions)
			protected.GET("/wallet", s.getWallet)
			protected.GET("/balance", s.getBalance)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
