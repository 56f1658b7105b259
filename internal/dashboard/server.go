package dashboard

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"beraflow/config"
	"beraflow/internal/aggregate"
	"beraflow/internal/live"
	"beraflow/internal/store"
	"beraflow/logger"
)

//go:embed assets/*
var embeddedFS embed.FS

// Server hosts the flow dashboard and its JSON API.
type Server struct {
	cfg        config.ServerConfig
	live       *live.Service
	store      *store.Store
	log        *logger.Log
	httpServer *http.Server
}

func NewServer(cfg config.ServerConfig, liveSvc *live.Service, st *store.Store) *Server {
	cfg.Address = normalizeAddress(cfg.Address)
	return &Server{
		cfg:   cfg,
		live:  liveSvc,
		store: st,
		log:   logger.GetLogger(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.log.WithComponent("dashboard").WithFields(logger.Fields{
		"address": s.cfg.Address,
	}).Info("dashboard server started")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

// Address reports the listen address.
func (s *Server) Address() string {
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), cors())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/api/data", s.handleData)
	router.GET("/api/depth", s.handleDepth)
	router.GET("/api/historical", s.handleHistorical)

	router.GET("/", func(c *gin.Context) {
		page, err := embeddedFS.ReadFile("assets/index.html")
		if err != nil {
			c.String(http.StatusNotFound, "not found")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})

	if assets, err := fs.Sub(embeddedFS, "assets"); err == nil {
		router.StaticFS("/assets", http.FS(assets))
	}

	return router, nil
}

func (s *Server) handleData(c *gin.Context) {
	interval := c.DefaultQuery("interval", "1d")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "7"))

	snap, err := s.live.Data(c.Request.Context(), interval, limit)
	if err != nil {
		s.log.WithComponent("dashboard").WithError(err).Error("live snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleDepth(c *gin.Context) {
	// A nil depth serializes as JSON null, matching an empty book upstream.
	c.JSON(http.StatusOK, s.live.Depth(c.Request.Context()))
}

func (s *Server) handleHistorical(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	toTs := time.Now().UnixMilli()
	fromTs := toTs - int64(hours)*time.Hour.Milliseconds()

	records := s.store.LoadRange(fromTs, toTs)
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"error":  "No historical data yet. Collector needs time to gather data.",
			"fromTs": fromTs,
			"toTs":   toTs,
			"hours":  hours,
			"spot":   gin.H{},
			"perp":   gin.H{},
		})
		return
	}

	window := aggregate.Flow(records, fromTs, toTs)
	c.JSON(http.StatusOK, gin.H{
		"fromTs": fromTs,
		"toTs":   toTs,
		"hours":  hours,
		"spot":   window.Spot,
		"perp":   window.Perp,
	})
}

// cors allows dashboard access from any origin; the API is read-only.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8080"
	}
	if strings.HasPrefix(addr, ":") {
		return "0.0.0.0" + addr
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, "8080")
	}
	return addr
}
