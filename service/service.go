package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/op-leafrunner/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = 8080
)

// Config selects which servers run. A zero HealthzPort disables the health
// check server; the metrics server follows Metrics.Enabled.
type Config struct {
	HealthzAddr string
	HealthzPort int
	Metrics     opmetrics.CLIConfig
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	cfg Config
	log log.Logger
}

func New(cfg Config, logger log.Logger) *Service {
	if cfg.HealthzAddr == "" {
		cfg.HealthzAddr = HealthzHost
	}
	s := &Service{
		cfg: cfg,
		log: logger,
	}
	if cfg.HealthzPort != 0 {
		s.Healthz = NewHealthzServer(logger)
	}
	if cfg.Metrics.Enabled {
		s.Metrics = NewMetricsServer(logger, nil)
	}
	return s
}

func (s *Service) Start(ctx context.Context) error {
	s.log.Info("service starting")

	if s.Healthz != nil {
		addr := net.JoinHostPort(s.cfg.HealthzAddr, strconv.Itoa(s.cfg.HealthzPort))
		s.log.Info("starting healthz server", "addr", addr)
		if err := s.Healthz.Start(ctx, addr); err != nil {
			metrics.RecordErrorDetails("healthz_start", err)
			return fmt.Errorf("starting healthz server: %w", err)
		}
	}

	if s.Metrics != nil {
		addr := net.JoinHostPort(s.cfg.Metrics.ListenAddr, strconv.Itoa(s.cfg.Metrics.ListenPort))
		s.log.Info("starting metrics server", "addr", addr)
		if err := s.Metrics.Start(ctx, addr); err != nil {
			metrics.RecordErrorDetails("metrics_start", err)
			return errors.Join(fmt.Errorf("starting metrics server: %w", err), s.Shutdown(ctx))
		}
	}

	s.log.Info("service started")
	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("service shutting down")

	var errs []error
	if s.Healthz != nil {
		errs = append(errs, s.Healthz.Shutdown(ctx))
		s.log.Info("healthz stopped")
	}
	if s.Metrics != nil {
		errs = append(errs, s.Metrics.Shutdown(ctx))
		s.log.Info("metrics stopped")
	}

	s.log.Info("service stopped")
	return errors.Join(errs...)
}
