package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"systrader/fetcher"
)

// Server is the HTTP front of the backtester.
type Server struct {
	engine *gin.Engine
	server *http.Server
}

// NewServer builds the gin engine, wires the handler and registers routes.
func NewServer(f *fetcher.HistoryFetcher, port int, watchlist []string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine: engine,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: engine,
		},
	}

	s.setupRoutes(NewHandler(f, watchlist))
	return s
}

func (s *Server) setupRoutes(handler *Handler) {
	api := s.engine.Group("/api")
	{
		api.POST("/backtest", handler.RunBacktest)
		api.GET("/history", handler.GetHistory)
		api.GET("/scan", handler.Scan)
		api.GET("/meta/limits", handler.GetLimits)
		api.GET("/status", handler.GetStatus)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Printf("[API] listening on http://localhost%s\n", s.server.Addr)
	log.Println("[API] endpoints:")
	log.Println("  POST /api/backtest    - run a rule-based backtest")
	log.Println("  GET  /api/history     - OHLCV history with indicators")
	log.Println("  GET  /api/scan        - evaluate entry rules on latest bars")
	log.Println("  GET  /api/meta/limits - supported intervals and lookbacks")
	log.Println("  GET  /api/status      - market session and cache state")
	log.Println("  GET  /metrics         - prometheus metrics")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests with a short grace period.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log.Printf("[API] %s %s %d %v\n", c.Request.Method, path, status, latency)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
