package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/workload"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile   string
	workloadFile string
	engineName   string
	countArg     int
	rateArg      float64
	logLevel     string

	globalContext context.Context
	globalCancel  context.CancelFunc
)

// loadConfig builds the node config shared by every command. Bench nodes never serve the status API.
func loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	var args []string
	if configFile != "" {
		args = append(args, "-config", configFile)
	}
	if engineName != "" {
		args = append(args, "-engine", engineName)
	}
	if logLevel != "" {
		args = append(args, "-L", logLevel)
	}
	if err := cfg.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.SetupLogger(); err != nil {
		return nil, errors.WithStack(err)
	}
	log.ReplaceGlobals(cfg.GetZapLogger(), cfg.GetZapLogProperties())
	for _, msg := range cfg.WarningMsgs {
		log.Warn(msg)
	}
	cfg.StatusAddr = ""
	return cfg, nil
}

func loadProfile(cmd *cobra.Command) (*workload.Profile, error) {
	p := workload.DefaultProfile()
	if workloadFile != "" {
		var err error
		if p, err = workload.LoadProfile(workloadFile); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("count") {
		p.Count = countArg
	}
	if cmd.Flags().Changed("rate") {
		p.Rate = rateArg
	}
	if p.Count <= 0 {
		return nil, errors.New("a bench needs a positive action count")
	}
	return p, p.Validate()
}

func initCommonFlags(m *cobra.Command) {
	m.Flags().StringVarP(&configFile, "config", "c", "", "calvin-server config file")
	m.Flags().StringVarP(&workloadFile, "workload", "w", "", "workload profile (yaml)")
	m.Flags().StringVar(&engineName, "engine", "", "storage engine, overrides the config file")
	m.Flags().IntVar(&countArg, "count", 0, "number of actions, overrides the profile")
	m.Flags().Float64Var(&rateArg, "rate", 0, "actions per second, overrides the profile")
	m.Flags().StringVarP(&logLevel, "log-level", "L", "", "log level")
}

func main() {
	globalContext, globalCancel = context.WithCancel(context.Background())

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	closeDone := make(chan struct{}, 1)
	go func() {
		select {
		case sig := <-sc:
			fmt.Printf("\nGot signal [%v] to exit.\n", sig)
			globalCancel()
		case <-closeDone:
			return
		}
		select {
		case <-sc:
			os.Exit(1)
		case <-time.After(10 * time.Second):
			fmt.Print("\nWait 10s for closed, force exit\n")
			os.Exit(1)
		case <-closeDone:
		}
	}()

	rootCmd := &cobra.Command{
		Use:          "calvin-bench",
		Short:        "Drive and check tinycalvin nodes in process",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		newRunCommand(),
		newVerifyCommand(),
	)

	code := 0
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", zap.Error(err))
		code = 1
	}
	globalCancel()
	closeDone <- struct{}{}
	log.Sync()
	os.Exit(code)
}
