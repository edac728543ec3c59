package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/scheduler"
	"github.com/pingcap-incubator/tinycalvin/kv/storage"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Version information, set at build time.
var (
	ReleaseVersion = "None"
	GitHash        = "None"
)

// StatsSource is implemented by *scheduler.Scheduler.
type StatsSource interface {
	Stats() scheduler.Stats
}

// LatencySource is implemented by *executor.Pool.
type LatencySource interface {
	MedianLatency() time.Duration
}

// Submitter accepts client actions for sequencing, like *sequencer.Sequencer.
type Submitter interface {
	Append(a *action.Action)
}

// Options are the parts of a node served over HTTP. Only Stats is required.
type Options struct {
	Config    *config.Config
	Stats     StatsSource
	Engine    storage.Engine
	Submitter Submitter
	Latency   LatencySource
}

// Server serves the status API of a node.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(addr string, opts *Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: NewHandler(opts),
		},
	}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.Annotatef(err, "listen on %s", s.httpServer.Addr)
	}
	s.listener = l
	log.Info("status server started", zap.String("addr", l.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Error("status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Close(ctx context.Context) error {
	return errors.Trace(s.httpServer.Shutdown(ctx))
}
