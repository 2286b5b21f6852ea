package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/sockvisor/sockvisor/pkg/config"
	"github.com/sockvisor/sockvisor/pkg/control"
	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/pidfile"
	"github.com/sockvisor/sockvisor/pkg/supervisor"
)

type flagOptions struct {
	Config string `short:"c" long:"config" description:"path to the YAML configuration file" required:"true"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logFuncs := logging.NewZapLogFuncs(logging.ZapOptions{
		Level:    cfg.Supervisor.LogLevel,
		FilePath: cfg.Supervisor.LogFile,
	})
	logger := logging.NewLogger("module: sockvisord , ", logFuncs)

	logger.Infof("Starting, config: %s, programs: %d", opts.Config, len(cfg.Programs))

	if err := run(cfg, logger); err != nil {
		logger.Errorf("Daemon failed: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	pidManager := pidfile.NewManager(cfg.Supervisor.PIDFile, logger)
	if err := pidManager.Write(pidfile.DefaultAppName, os.Getpid()); err != nil {
		logger.Warnf("Failed to write pid file: %v", err)
	} else {
		defer func() {
			if err := pidManager.Remove(pidfile.DefaultAppName); err != nil {
				logger.Warnf("Failed to remove pid file: %v", err)
			}
		}()
	}

	sup := supervisor.NewSupervisor(supervisor.Options{
		ForceShutdownTimeout:   cfg.Supervisor.ForceShutdownTimeout,
		DefaultStopWaitTimeout: cfg.Supervisor.DefaultStopWaitTimeout,
	}, logging.NewLogger("module: supervisor , ", logging.LogFuncs{
		Debugf: logger.Debugf,
		Infof:  logger.Infof,
		Warnf:  logger.Warnf,
		Errorf: logger.Errorf,
	}))

	for _, program := range cfg.Programs {
		if err := sup.AddProgram(program); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if err := sup.Start(ctx); err != nil {
		// Autostart failures are reported but the daemon keeps serving:
		// failed programs sit in backoff or fatal and can be restarted
		logger.Warnf("Some programs failed to autostart: %v", err)
	}

	controlServer := control.NewServer(sup, cfg.Supervisor.ControlSocket,
		logging.NewLogger("module: control , ", logging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		}))
	if err := controlServer.Start(); err != nil {
		stopCtx, cancel := context.WithTimeout(ctx, cfg.Supervisor.ForceShutdownTimeout)
		defer cancel()
		sup.Stop(stopCtx)
		return err
	}

	logger.Infof("Daemon ready, control socket: %s", cfg.Supervisor.ControlSocket)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	received := <-signals
	logger.Infof("Received signal %v, shutting down...", received)

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Supervisor.ForceShutdownTimeout+10*time.Second)
	defer cancel()

	if err := controlServer.Stop(shutdownCtx); err != nil {
		logger.Warnf("Control API shutdown failed: %v", err)
	}
	return sup.Stop(shutdownCtx)
}
