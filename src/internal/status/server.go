// FILE: wxsdr/src/internal/status/server.go
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wxsdr/src/internal/service"
	"wxsdr/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Server exposes pipeline observability over HTTP:
//
//	GET /status   pipeline stage statistics as JSON
//	GET /snapshot current output snapshot as JSON
//	GET /metrics  Prometheus exposition
type Server struct {
	port     int
	pipeline *service.Pipeline
	logger   *log.Logger
	server   *fasthttp.Server
}

func NewServer(port int, pipeline *service.Pipeline, logger *log.Logger) *Server {
	return &Server{
		port:     port,
		pipeline: pipeline,
		logger:   logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())

	s.server = &fasthttp.Server{
		Name:    fmt.Sprintf("wxsdr/%s", version.Short()),
		Handler: s.route(metricsHandler),
	}

	addr := fmt.Sprintf(":%d", s.port)
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("msg", "Status server started",
			"component", "status",
			"port", s.port)
		if err := s.server.ListenAndServe(addr); err != nil {
			errChan <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.ShutdownWithContext(shutdownCtx)
	}()

	// Check if server started successfully
	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.ShutdownWithContext(shutdownCtx)
	}
}

func (s *Server) route(metricsHandler fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/status":
			s.writeJSON(ctx, s.pipeline.GetStats())
		case "/snapshot":
			s.writeJSON(ctx, s.pipeline.Flush())
		case "/metrics":
			metricsHandler(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("msg", "Failed to marshal status response",
			"component", "status",
			"error", err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}
