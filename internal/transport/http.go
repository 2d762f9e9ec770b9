package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"treksafer/internal/config"
	"treksafer/internal/router"
)

// httpTransport exposes the router over a minimal JSON API, mainly for local
// testing and gateway webhooks.
type httpTransport struct {
	server *http.Server
	logger *slog.Logger
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

type messageResponse struct {
	Reply string `json:"reply"`
}

func newHTTPTransport(cfg config.TransportConfig, svc router.Service, logger *slog.Logger) (Transport, error) {
	logger = logger.With("component", "http-transport")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/message", func(c *gin.Context) {
		var req messageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		c.JSON(http.StatusOK, messageResponse{Reply: svc.Handle(req.Message)})
	})

	return &httpTransport{
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler: engine,
		},
		logger: logger,
	}, nil
}

func (t *httpTransport) Name() string { return "http" }

func (t *httpTransport) Listen(ctx context.Context) error {
	t.logger.Info("listening", "addr", t.server.Addr)
	if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http transport serve: %w", err)
	}
	return nil
}

func (t *httpTransport) Stop(ctx context.Context) error {
	return t.server.Shutdown(ctx)
}
