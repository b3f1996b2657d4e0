// Package api exposes the ledger engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/pocketledger/internal/accounts"
	"github.com/cleared-dev/pocketledger/internal/allocation"
	"github.com/cleared-dev/pocketledger/internal/config"
	"github.com/cleared-dev/pocketledger/internal/journal"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/recurring"
	"github.com/cleared-dev/pocketledger/internal/rollover"
)

// HeaderParty carries the caller's party id. Authentication happens
// upstream; the API trusts this header.
const HeaderParty = "X-Party-ID"

// Services are the domain services the API delegates to.
type Services struct {
	Accounts  *accounts.Service
	Journal   *journal.Service
	Rollover  *rollover.Service
	Recurring *recurring.Service
	Planner   *allocation.Planner
}

// Server routes HTTP requests to the domain services.
type Server struct {
	svc       Services
	logger    *log.Logger
	threshold int
	engine    *gin.Engine
}

// New builds the router. threshold is the approaching-limit percentage
// used when reporting budget status.
func New(svc Services, cfg config.ServerConfig, threshold int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	if threshold <= 0 {
		threshold = rollover.DefaultThreshold
	}
	s := &Server{
		svc:       svc,
		logger:    logger.WithComponent(log.ComponentHTTP),
		threshold: threshold,
		engine:    gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestLogger(s.logger))
	if len(cfg.CORSOrigins) > 0 {
		s.engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", HeaderParty},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "pocketledger"})
	})

	v1 := s.engine.Group("/api/v1", requireParty())

	v1.GET("/accounts", s.listAccounts)
	v1.GET("/accounts/:id/balance", s.accountBalance)

	v1.POST("/transactions", s.postTransaction)
	v1.DELETE("/transactions/:id", s.voidTransaction)

	v1.POST("/budgets", s.ensureBudget)
	cat := v1.Group("/budgets/:budget_id/categories/:category_id")
	cat.PUT("", s.setCategoryBudget)
	cat.POST("/rollover", s.computeRollover)
	cat.PUT("/rollover", s.overrideRollover)
	cat.GET("/rollover/history", s.rolloverHistory)
	cat.POST("/recalculate", s.recalculate)

	v1.POST("/recurring/:id/materialize", s.materialize)
	v1.POST("/allocation", s.allocate)
}
