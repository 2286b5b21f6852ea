package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/sockvisor/sockvisor/pkg/control"
	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/supervisor"
)

type flagOptions struct {
	Socket  string        `short:"s" long:"socket" description:"control socket path" default:"/var/run/sockvisor/sockvisord.sock"`
	Timeout time.Duration `long:"timeout" description:"operation timeout" default:"60s"`
	Verbose bool          `short:"v" long:"verbose" description:"enable debug output"`

	Positional struct {
		Command string `positional-arg-name:"command" description:"info | status | start | stop | restart"`
		Program string `positional-arg-name:"program"`
	} `positional-args:"yes"`
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

	logFuncs := logging.LogFuncs{
		Debugf: discardf,
		Infof:  discardf,
		Warnf:  warnf,
		Errorf: errorf,
	}
	if opts.Verbose {
		logFuncs.Debugf = warnf
		logFuncs.Infof = warnf
	}
	logger := logging.NewLogger("", logFuncs)

	client := control.NewClient(opts.Socket, logger)

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := dispatch(ctx, client, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, client *control.Client, opts flagOptions) error {
	command := opts.Positional.Command
	program := opts.Positional.Program

	switch command {
	case "", "status":
		if program == "" {
			return printAll(ctx, client)
		}
		return printOne(ctx, client, program)

	case "info":
		info, err := client.SupervisorInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("state: %s\nprograms: %d\nstarted: %s\n",
			info.State, info.ProgramCount, info.StartedAt.Format(time.RFC3339))
		return nil

	case "start", "stop", "restart":
		if program == "" {
			return fmt.Errorf("%s requires a program name", command)
		}
		var err error
		switch command {
		case "start":
			err = client.StartProgram(ctx, program)
		case "stop":
			err = client.StopProgram(ctx, program)
		case "restart":
			err = client.RestartProgram(ctx, program)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s ok\n", program, command)
		return nil

	default:
		return fmt.Errorf("unknown command: %s (expected info, status, start, stop or restart)", command)
	}
}

func printAll(ctx context.Context, client *control.Client) error {
	programs, err := client.ListPrograms(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		printStatus(name, programs[name])
	}
	return nil
}

func printOne(ctx context.Context, client *control.Client, name string) error {
	status, err := client.ProgramStatus(ctx, name)
	if err != nil {
		return err
	}
	printStatus(name, *status)
	return nil
}

func printStatus(name string, status supervisor.Status) {
	line := fmt.Sprintf("%-20s %-10s restarts: %d", name, status.State, status.RestartCount)
	if status.PID != 0 {
		line += fmt.Sprintf("  pid: %d", status.PID)
	}
	if status.StartedAt != nil {
		line += fmt.Sprintf("  uptime: %s", time.Since(*status.StartedAt).Round(time.Second))
	}
	if status.Health != nil {
		line += fmt.Sprintf("  health: %s", status.Health.Status)
	}
	if status.LastError != "" {
		line += fmt.Sprintf("  last error: %s", status.LastError)
	}
	fmt.Println(line)
}

func discardf(format string, args ...interface{}) {}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
