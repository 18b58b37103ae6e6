package service

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the default Prometheus registry on /metrics
type MetricsServer struct {
	httpServer
}

func (m *MetricsServer) Start(ctx context.Context, addr string) error {
	hdlr := http.NewServeMux()
	hdlr.Handle("/metrics", promhttp.Handler())
	return m.serve(ctx, addr, hdlr)
}
