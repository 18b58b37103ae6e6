package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-launcher/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = 8080

	MetricsHost = "0.0.0.0"
	MetricsPort = 7300
)

// Config selects which servers run and where they listen. A zero port picks
// a free one.
type Config struct {
	HealthzEnabled bool
	HealthzHost    string
	HealthzPort    int
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int
	Log            log.Logger
}

// DefaultConfig listens for health checks on the default port only
func DefaultConfig() Config {
	return Config{
		HealthzEnabled: true,
		HealthzHost:    HealthzHost,
		HealthzPort:    HealthzPort,
		MetricsHost:    MetricsHost,
		MetricsPort:    MetricsPort,
	}
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer
	cfg     Config
	log     log.Logger
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	s := &Service{
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
		cfg:     cfg,
		log:     cfg.Log.New("component", "service"),
	}
	return s
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("service starting")

	if s.cfg.HealthzEnabled {
		go func() {
			addr := net.JoinHostPort(s.cfg.HealthzHost, strconv.Itoa(s.cfg.HealthzPort))
			s.log.Info("starting healthz server", "addr", addr)
			if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting healthz server", "err", err)
				metrics.RecordErrorDetails("error starting healthz server", err)
			}
		}()
	}

	if s.cfg.MetricsEnabled {
		go func() {
			addr := net.JoinHostPort(s.cfg.MetricsHost, strconv.Itoa(s.cfg.MetricsPort))
			s.log.Info("starting metrics server", "addr", addr)
			if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("error starting metrics server", err)
			}
		}()
	}

	s.log.Info("service started")
}

func (s *Service) Shutdown() {
	s.log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	s.log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	s.log.Info("metrics stopped")

	s.log.Info("service stopped")
}
