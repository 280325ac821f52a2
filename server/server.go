// Package server is the HTTP surface in front of the invoicer. It only
// translates between wire DTOs and the domain; every decision about
// retries and classification lives below it.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/facturalo/go-afip-facturador/afip"
)

var logger = logrus.WithField("component", "server")

// Issuer is the upward interface of the core.
type Issuer interface {
	Issue(ctx context.Context, creds afip.Credentials, env afip.Environment, req afip.InvoiceRequest) (*afip.InvoiceResult, error)
}

type Config struct {
	Address      string
	Environment  afip.Environment
	Debug        bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	config *Config
	router *gin.Engine
	issuer Issuer
}

func New(config *Config, issuer Issuer) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{config: config, router: router, issuer: issuer}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	ns := s.router.Group("/afipws")
	{
		ns.GET("/test", s.handleTest)
		ns.POST("/facturador", s.handleIssue)
	}
}

func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	logger.Infof("listening on %s (environment %s)", s.config.Address, s.config.Environment.Name())
	return srv.ListenAndServe()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-Id", id)
		c.Set("request_id", id)
		c.Next()
	}
}
