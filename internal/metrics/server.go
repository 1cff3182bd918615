package metrics

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Server exposes a registry at /metrics.
type Server struct {
	addr   string
	srv    *fasthttp.Server
	logger *zap.Logger
}

func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		Registry:          m.Registry,
		EnableOpenMetrics: true,
	}))
	return &Server{
		addr: addr,
		srv: &fasthttp.Server{
			Handler: func(ctx *fasthttp.RequestCtx) {
				if string(ctx.Path()) != "/metrics" {
					ctx.SetStatusCode(fasthttp.StatusNotFound)
					return
				}
				handler(ctx)
			},
			GetOnly:          true,
			DisableKeepalive: true,
		},
		logger: logger,
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics enabled", zap.String("bind", s.addr))
		if err := s.srv.ListenAndServe(s.addr); err != nil {
			s.logger.Error("metrics server", zap.Error(err))
		}
	}()
}

func (s *Server) Stop() {
	_ = s.srv.Shutdown()
}
