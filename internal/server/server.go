package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/purelind/pycompat-check/pkg/logger"
)

// Registrar adds a group of routes to the engine.
type Registrar interface {
	Register(r gin.IRouter)
}

type Server struct {
	engine *gin.Engine
	server *http.Server
}

func New(port int, registrars ...Registrar) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(ErrorHandler())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	for _, r := range registrars {
		r.Register(engine)
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		// a check request runs a whole probe
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		engine: engine,
		server: srv,
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	logger.Info("Starting server on", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// custom middleware: request logger
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// process request
		c.Next()

		// log after request processed
		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info(fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %s",
			time.Now().Format("2006/01/02 - 15:04:05"),
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.Request.Method,
			path,
		))
	}
}

// custom middleware: error handler
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last()

		switch e := err.Err.(type) {
		case *Error:
			c.JSON(e.Status, gin.H{
				"status":  "error",
				"message": e.Message,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": "Internal Server Error",
			})
		}
	}
}
