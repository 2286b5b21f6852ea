// sockserver is a minimal worker-pool stand-in used by supervision tests
// and manual smoke runs: it binds a UNIX socket, answers HTTP on it and
// drains on SIGQUIT/SIGTERM. With --exit-after it terminates on its own,
// optionally with a failure code, to exercise restart policies.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Socket    string        `short:"s" long:"socket" description:"UNIX socket path to bind" required:"true"`
	ExitAfter time.Duration `long:"exit-after" description:"exit on our own after this duration (0 disables)"`
	ExitCode  int           `long:"exit-code" description:"exit code used with --exit-after" default:"0"`
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

	// The server owns its socket file: remove leftovers, bind, serve
	if err := os.Remove(opts.Socket); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to remove old socket: %v\n", err)
		os.Exit(1)
	}

	listener, err := net.Listen("unix", opts.Socket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind socket: %v\n", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok pid=%d\n", os.Getpid())
	})
	server := &http.Server{Handler: mux}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "serve failed: %v\n", err)
			os.Exit(1)
		}
	}()

	fmt.Printf("sockserver listening, socket: %s, pid: %d\n", opts.Socket, os.Getpid())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)

	exitCode := 0
	if opts.ExitAfter > 0 {
		select {
		case received := <-signals:
			fmt.Printf("received %v, draining\n", received)
		case <-time.After(opts.ExitAfter):
			fmt.Printf("exit-after elapsed, exiting with code %d\n", opts.ExitCode)
			exitCode = opts.ExitCode
		}
	} else {
		received := <-signals
		fmt.Printf("received %v, draining\n", received)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	os.Remove(opts.Socket)

	os.Exit(exitCode)
}
