package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/provision"
)

type flagOptions struct {
	Plan     string `short:"p" long:"plan" description:"path to the YAML provisioning plan" required:"true"`
	Manifest string `short:"m" long:"manifest" description:"where to write the build manifest" default:"/var/lib/sockvisor/build-manifest.yaml"`
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

	logFuncs := logging.NewZapLogFuncs(logging.ZapOptions{Level: "info"})
	logger := logging.NewLogger("module: provision , ", logFuncs)

	plan, err := provision.LoadPlan(opts.Plan)
	if err != nil {
		logger.Errorf("Failed to load plan: %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := provision.NewRunner(plan, logger)
	manifest, err := runner.Run(ctx)
	if err != nil {
		logger.Errorf("Provisioning failed: %v", err)
		os.Exit(1)
	}

	if err := manifest.WriteFile(opts.Manifest); err != nil {
		logger.Errorf("Failed to write build manifest: %v", err)
		os.Exit(1)
	}

	logger.Infof("Build manifest written, path: %s, run: %s", opts.Manifest, manifest.RunID)
}
