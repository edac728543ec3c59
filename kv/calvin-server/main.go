package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/node"
	"github.com/pingcap-incubator/tinycalvin/kv/server"
	"github.com/pingcap-incubator/tinycalvin/kv/workload"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.NewConfig()
	err := cfg.Parse(os.Args[1:])

	if cfg.Version {
		server.PrintInfo()
		exit(0)
	}

	switch errors.Cause(err) {
	case nil:
	case flag.ErrHelp:
		exit(0)
	default:
		log.Fatal("parse cmd flags error", zap.Error(err))
	}

	err = cfg.SetupLogger()
	if err == nil {
		log.ReplaceGlobals(cfg.GetZapLogger(), cfg.GetZapLogProperties())
	} else {
		log.Fatal("initialize logger error", zap.Error(err))
	}
	// Flushing any buffered log entries
	defer log.Sync()

	server.LogInfo()
	for _, msg := range cfg.WarningMsgs {
		log.Warn(msg)
	}
	log.Info("config", zap.Stringer("config", cfg))

	var profile *workload.Profile
	if cfg.Workload != "" {
		if profile, err = workload.LoadProfile(cfg.Workload); err != nil {
			log.Fatal("load workload failed", zap.String("path", cfg.Workload), zap.Error(err))
		}
	}

	n, err := node.NewNode(cfg)
	if err != nil {
		log.Fatal("create node failed", zap.Error(err))
	}
	if err = n.Start(); err != nil {
		log.Fatal("start node failed", zap.Error(err))
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	ctx, cancel := context.WithCancel(context.Background())
	var sig os.Signal
	go func() {
		sig = <-sc
		cancel()
	}()

	if profile != nil {
		go func() {
			if _, err := n.RunWorkload(ctx, profile); err != nil {
				log.Error("run workload failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("Got signal to exit", zap.String("signal", sig.String()))

	n.Stop()
	switch sig {
	case syscall.SIGTERM:
		exit(0)
	default:
		exit(1)
	}
}

func exit(code int) {
	log.Sync()
	os.Exit(code)
}
