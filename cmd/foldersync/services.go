package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/0xmhha/foldersync/pkg/display"
	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/0xmhha/foldersync/pkg/metrics"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thejerf/suture/v4"
)

// serviceTimeout bounds how long the supervisor waits for a service to
// stop.
const serviceTimeout = 10 * time.Second

var errMirrorStopped = errors.New("mirror stopped")

// mirrorService runs a mirror under the supervisor. A mirror runs at most
// once, so when it stops for any reason other than shutdown the whole tree
// is terminated.
type mirrorService struct {
	mirror *mirror.Mirror

	mu  sync.Mutex
	err error
}

func newMirrorService(m *mirror.Mirror) *mirrorService {
	return &mirrorService{mirror: m}
}

// Serve implements suture.Service.
func (s *mirrorService) Serve(ctx context.Context) error {
	err := s.mirror.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = errMirrorStopped
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	return fmt.Errorf("%w: %v", suture.ErrTerminateSupervisorTree, err)
}

// Err returns why the mirror stopped, or nil after a normal shutdown.
func (s *mirrorService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *mirrorService) String() string { return "mirror" }

// printerService writes every update to out.
type printerService struct {
	updates   <-chan mirror.Update
	formatter display.Formatter
	out       io.Writer
	log       logger.Logger
}

// Serve implements suture.Service.
func (s *printerService) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-s.updates:
			if !ok {
				return suture.ErrDoNotRestart
			}
			if err := s.formatter.FormatUpdate(s.out, u); err != nil {
				s.log.Warn("failed to print update", "path", u.Path, "error", err)
			}
		}
	}
}

func (s *printerService) String() string { return "printer" }

// metricsService serves the Prometheus endpoint.
type metricsService struct {
	addr     string
	registry *prometheus.Registry
	log      logger.Logger
}

// Serve implements suture.Service.
func (s *metricsService) Serve(ctx context.Context) error {
	return metrics.Serve(ctx, s.addr, s.registry, s.log)
}

func (s *metricsService) String() string { return "metrics" }
